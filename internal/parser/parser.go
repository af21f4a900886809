package parser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"engine-health-monitor/internal/models"
)

// ErrInvalidReading is wrapped by every rejected reading
var ErrInvalidReading = errors.New("invalid sensor reading")

// ValidationError lists every problem found in a reading
type ValidationError struct {
	Problems []string
}

// Error joins every problem into one message
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidReading, strings.Join(e.Problems, "; "))
}

// Unwrap lets errors.Is match ErrInvalidReading
func (e *ValidationError) Unwrap() error {
	return ErrInvalidReading
}

// Record is one reading as it arrives from a file, provider or API call
type Record struct {
	VehicleID string               `json:"vehicle_id,omitempty"`
	Timestamp time.Time            `json:"timestamp,omitempty"`
	Reading   models.SensorReading `json:"reading"`
	// Condition is an optional ground-truth label; evaluation ignores it
	Condition models.HealthLabel `json:"condition,omitempty"`
}

// ReadingPayload is the wire shape of a reading. Pointers distinguish a
// missing field from a zero value.
type ReadingPayload struct {
	VehicleID       string    `json:"vehicle_id,omitempty"`
	Timestamp       time.Time `json:"timestamp,omitempty"`
	EngineRPM       *int      `json:"engine_rpm"`
	LubOilPressure  *float64  `json:"lub_oil_pressure"`
	FuelPressure    *float64  `json:"fuel_pressure"`
	CoolantPressure *float64  `json:"coolant_pressure"`
	LubOilTemp      *float64  `json:"lub_oil_temp"`
	CoolantTemp     *float64  `json:"coolant_temp"`
	BatteryVoltage  *float64  `json:"battery_voltage"`
	Condition       string    `json:"condition,omitempty"`
}

// Record converts a payload, rejecting missing or out-of-domain fields
func (p ReadingPayload) Record() (Record, error) {
	var missing []string
	check := func(name string, ok bool) {
		if !ok {
			missing = append(missing, name+" is required")
		}
	}
	check("engine_rpm", p.EngineRPM != nil)
	check("lub_oil_pressure", p.LubOilPressure != nil)
	check("fuel_pressure", p.FuelPressure != nil)
	check("coolant_pressure", p.CoolantPressure != nil)
	check("lub_oil_temp", p.LubOilTemp != nil)
	check("coolant_temp", p.CoolantTemp != nil)
	check("battery_voltage", p.BatteryVoltage != nil)
	if len(missing) > 0 {
		return Record{}, &ValidationError{Problems: missing}
	}

	rec := Record{
		VehicleID: p.VehicleID,
		Timestamp: p.Timestamp,
		Condition: models.HealthLabel(p.Condition),
		Reading: models.SensorReading{
			EngineRPM:       *p.EngineRPM,
			LubOilPressure:  *p.LubOilPressure,
			FuelPressure:    *p.FuelPressure,
			CoolantPressure: *p.CoolantPressure,
			LubOilTemp:      *p.LubOilTemp,
			CoolantTemp:     *p.CoolantTemp,
			BatteryVoltage:  *p.BatteryVoltage,
		},
	}
	if err := ValidateReading(rec.Reading); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// DecodeReading decodes and validates a single JSON reading
func DecodeReading(r io.Reader) (Record, error) {
	var p ReadingPayload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidReading, err)
	}
	return p.Record()
}

// Parser handles parsing of sensor reading files
type Parser struct {
	format string
	log    logrus.FieldLogger
}

// NewParser creates a new parser with the specified format
func NewParser(format string, log logrus.FieldLogger) *Parser {
	return &Parser{format: format, log: log}
}

// ParseFile parses a reading file. Malformed rows are logged and skipped.
func (p *Parser) ParseFile(filename string) ([]Record, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return p.Parse(file)
}

// Parse reads records in the parser's format
func (p *Parser) Parse(r io.Reader) ([]Record, error) {
	switch strings.ToLower(p.format) {
	case "csv":
		return p.parseCSV(r)
	case "json":
		return p.parseJSON(r)
	case "log":
		return p.parseLog(r)
	default:
		return nil, fmt.Errorf("unsupported format: %s", p.format)
	}
}

var csvColumns = []string{
	"engine_rpm",
	"lub_oil_pressure",
	"fuel_pressure",
	"coolant_pressure",
	"lub_oil_temp",
	"coolant_temp",
	"battery_voltage",
}

// parseCSV parses CSV formatted readings with a header row
func (p *Parser) parseCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	indices := make(map[string]int)
	for i, h := range header {
		indices[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range csvColumns {
		if _, ok := indices[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var results []Record
	lineNum := 1

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return results, fmt.Errorf("error at line %d: %w", lineNum, err)
		}
		lineNum++

		rec, err := rowToRecord(row, indices)
		if err != nil {
			p.log.WithField("line", lineNum).Warn(err)
			continue
		}
		results = append(results, rec)
	}

	return results, nil
}

// rowToRecord converts a CSV row to a Record
func rowToRecord(row []string, indices map[string]int) (Record, error) {
	getValue := func(key string) string {
		if idx, ok := indices[key]; ok && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	var p ReadingPayload
	var problems []string

	p.VehicleID = getValue("vehicle_id")
	p.Condition = getValue("condition")
	if ts := getValue("timestamp"); ts != "" {
		t, err := parseTimestamp(ts)
		if err != nil {
			return Record{}, fmt.Errorf("invalid timestamp: %w", err)
		}
		p.Timestamp = t
	}

	if v := getValue("engine_rpm"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			problems = append(problems, "engine_rpm is not an integer")
		} else {
			p.EngineRPM = &n
		}
	}
	floats := []struct {
		key string
		dst **float64
	}{
		{"lub_oil_pressure", &p.LubOilPressure},
		{"fuel_pressure", &p.FuelPressure},
		{"coolant_pressure", &p.CoolantPressure},
		{"lub_oil_temp", &p.LubOilTemp},
		{"coolant_temp", &p.CoolantTemp},
		{"battery_voltage", &p.BatteryVoltage},
	}
	for _, f := range floats {
		v := getValue(f.key)
		if v == "" {
			continue
		}
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			problems = append(problems, f.key+" is not a number")
			continue
		}
		*f.dst = &x
	}
	if len(problems) > 0 {
		return Record{}, &ValidationError{Problems: problems}
	}

	return p.Record()
}

// parseJSON parses a JSON array, falling back to newline-delimited JSON
// when the input is not an array. Malformed elements are logged and skipped.
func (p *Parser) parseJSON(r io.Reader) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return p.parseJSONLines(bytes.NewReader(data))
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, fmt.Errorf("invalid JSON array: %w", err)
	}

	results := make([]Record, 0, len(elems))
	for i, raw := range elems {
		var pl ReadingPayload
		if err := json.Unmarshal(raw, &pl); err != nil {
			p.log.WithField("index", i).Warn(err)
			continue
		}
		rec, err := pl.Record()
		if err != nil {
			p.log.WithField("index", i).Warn(err)
			continue
		}
		results = append(results, rec)
	}
	return results, nil
}

// parseJSONLines parses newline-delimited JSON
func (p *Parser) parseJSONLines(r io.Reader) ([]Record, error) {
	var results []Record
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var pl ReadingPayload
		if err := json.Unmarshal([]byte(line), &pl); err != nil {
			p.log.WithField("line", lineNum).Warn(err)
			continue
		}
		rec, err := pl.Record()
		if err != nil {
			p.log.WithField("line", lineNum).Warn(err)
			continue
		}
		results = append(results, rec)
	}

	return results, scanner.Err()
}

// parseLog parses the pipe format:
// timestamp|vehicle_id|rpm|oil_pressure|fuel_pressure|coolant_pressure|oil_temp|coolant_temp|battery
func (p *Parser) parseLog(r io.Reader) ([]Record, error) {
	var results []Record
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, "|")
		if len(parts) < 9 {
			p.log.WithField("line", lineNum).Warn("insufficient fields")
			continue
		}

		indices := map[string]int{"timestamp": 0, "vehicle_id": 1}
		for i, col := range csvColumns {
			indices[col] = i + 2
		}
		if len(parts) > 9 {
			indices["condition"] = 9
		}

		rec, err := rowToRecord(parts, indices)
		if err != nil {
			p.log.WithField("line", lineNum).Warn(err)
			continue
		}
		results = append(results, rec)
	}

	return results, scanner.Err()
}

// parseTimestamp tries multiple timestamp formats
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006/01/02 15:04:05",
		"01/02/2006 15:04:05",
		"2006-01-02",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	if ts, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(ts, 0), nil
	}

	return time.Time{}, fmt.Errorf("unable to parse timestamp: %s", s)
}

// ValidateReading rejects readings outside the sensor domain
func ValidateReading(r models.SensorReading) error {
	var problems []string

	if r.EngineRPM < 0 || r.EngineRPM > 10000 {
		problems = append(problems, "engine_rpm must be between 0 and 10000")
	}
	nonNegative := []struct {
		name string
		v    float64
	}{
		{"lub_oil_pressure", r.LubOilPressure},
		{"fuel_pressure", r.FuelPressure},
		{"coolant_pressure", r.CoolantPressure},
	}
	for _, f := range nonNegative {
		if f.v < 0 {
			problems = append(problems, f.name+" cannot be negative")
		}
	}
	finite := []struct {
		name string
		v    float64
	}{
		{"lub_oil_pressure", r.LubOilPressure},
		{"fuel_pressure", r.FuelPressure},
		{"coolant_pressure", r.CoolantPressure},
		{"lub_oil_temp", r.LubOilTemp},
		{"coolant_temp", r.CoolantTemp},
		{"battery_voltage", r.BatteryVoltage},
	}
	for _, f := range finite {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			problems = append(problems, f.name+" must be a finite number")
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Payload converts a record back to its wire shape
func (r Record) Payload() ReadingPayload {
	rd := r.Reading
	return ReadingPayload{
		VehicleID:       r.VehicleID,
		Timestamp:       r.Timestamp,
		EngineRPM:       &rd.EngineRPM,
		LubOilPressure:  &rd.LubOilPressure,
		FuelPressure:    &rd.FuelPressure,
		CoolantPressure: &rd.CoolantPressure,
		LubOilTemp:      &rd.LubOilTemp,
		CoolantTemp:     &rd.CoolantTemp,
		BatteryVoltage:  &rd.BatteryVoltage,
		Condition:       string(r.Condition),
	}
}
