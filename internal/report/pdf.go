package report

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/go-pdf/fpdf"

	"engine-health-monitor/internal/models"
)

// A4 portrait in points
const (
	pageW   = 595.28
	pageH   = 841.89
	marginL = 30.0
	marginR = 565.0
)

// WritePDFFile renders a report into the named file
func WritePDFFile(path string, r models.HealthReport) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := WritePDF(file, r); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// WritePDF renders a report as a single page PDF document
func WritePDF(w io.Writer, r models.HealthReport) error {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetTitle("Vehicle Health Diagnostic Report", true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	p := &page{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor(""), y: 92}
	p.header(r)

	p.section("Engine Parameters")
	p.row("Engine RPM", strconv.Itoa(r.Reading.EngineRPM))
	p.row("Oil Pressure", num(r.Reading.LubOilPressure)+" bar")
	p.row("Fuel Pressure", num(r.Reading.FuelPressure)+" bar")
	p.row("Coolant Pressure", num(r.Reading.CoolantPressure)+" bar")
	p.row("Oil Temperature", num(r.Reading.LubOilTemp)+" °C")
	p.row("Coolant Temperature", num(r.Reading.CoolantTemp)+" °C")
	p.row("Temperature Difference", num(r.Derived.TempDiff)+" °C")
	p.gap(10)

	p.section("Battery Health")
	p.row("Battery Voltage", num(r.Reading.BatteryVoltage)+" V")
	p.row("Battery Status", r.Battery.Status.DisplayText())
	p.row("Battery Score", fmt.Sprintf("%d%%", r.Battery.Score))
	p.gap(7)

	p.section("Overall Vehicle Health")
	label := r.Classifier.PredictedLabel
	p.coloured("Vehicle Condition", string(label), models.LabelColor(label))
	if r.Classifier.Available() {
		p.row("Confidence", fmt.Sprintf("%.1f%%", r.Classifier.Probability(label)))
		pdf.SetFont("Helvetica", "", 10)
		p.text(marginL+10, fmt.Sprintf("Healthy: %.1f%% | Warning: %.1f%% | Critical: %.1f%%",
			r.Classifier.Probability(models.LabelHealthy),
			r.Classifier.Probability(models.LabelWarning),
			r.Classifier.Probability(models.LabelCritical)))
	} else {
		pdf.SetFont("Helvetica", "", 10)
		p.text(marginL+10, "Classifier model not loaded; rule-based diagnostics only.")
	}
	p.gap(30)

	p.section("Diagnostics & Affected Systems")
	pdf.SetFont("Helvetica", "", 11)
	for _, sys := range r.Diagnostics.AffectedSystems {
		p.text(marginL+10, "- "+sys)
		p.gap(15)
	}
	p.gap(10)

	p.section("Advisories & Recommendations")
	pdf.SetFont("Helvetica", "", 11)
	for _, adv := range r.Diagnostics.Advisories {
		p.text(marginL+10, "- "+adv)
		p.gap(15)
	}

	pdf.SetFont("Helvetica", "I", 9)
	footer := "This report is auto-generated using AI-based vehicle health analytics"
	pdf.Text((pageW-pdf.GetStringWidth(footer))/2, pageH-30, footer)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}

type page struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
	y   float64
}

func (p *page) header(r models.HealthReport) {
	p.pdf.SetFillColor(26, 51, 102)
	p.pdf.Rect(0, 0, pageW, 42, "F")
	p.pdf.SetTextColor(255, 255, 255)
	p.pdf.SetFont("Helvetica", "B", 18)
	p.pdf.Text(marginL, 30, "Vehicle Health Diagnostic Report")

	p.pdf.SetTextColor(0, 0, 0)
	p.pdf.SetFont("Helvetica", "", 10)
	generated := "Generated on: " + r.GeneratedAt.Local().Format("02-01-2006 15:04")
	p.right(57, generated)
	if r.VehicleID != "" {
		p.pdf.Text(marginL, 57, "Vehicle: "+p.tr(r.VehicleID))
	}
}

func (p *page) section(title string) {
	p.pdf.SetFont("Helvetica", "B", 14)
	p.text(marginL, title)
	p.gap(15)
	p.pdf.Line(marginL, p.y, marginR, p.y)
	p.gap(20)
	p.pdf.SetFont("Helvetica", "", 11)
}

func (p *page) row(label, value string) {
	p.text(marginL+10, label)
	p.right(p.y, value)
	p.gap(18)
}

func (p *page) coloured(label, value, colour string) {
	p.pdf.SetFont("Helvetica", "", 12)
	p.text(marginL+10, label)
	switch colour {
	case "green":
		p.pdf.SetTextColor(0, 128, 0)
	case "orange":
		p.pdf.SetTextColor(230, 126, 0)
	default:
		p.pdf.SetTextColor(200, 0, 0)
	}
	p.right(p.y, value)
	p.pdf.SetTextColor(0, 0, 0)
	p.gap(20)
	p.pdf.SetFont("Helvetica", "", 11)
}

func (p *page) text(x float64, s string) {
	p.pdf.Text(x, p.y, p.tr(s))
}

func (p *page) right(y float64, s string) {
	s = p.tr(s)
	p.pdf.Text(marginR-5-p.pdf.GetStringWidth(s), y, s)
}

func (p *page) gap(dy float64) {
	p.y += dy
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
