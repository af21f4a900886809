package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"engine-health-monitor/internal/api"
	"engine-health-monitor/internal/classifier"
	"engine-health-monitor/internal/config"
	"engine-health-monitor/internal/db"
	"engine-health-monitor/internal/diagnostics"
	"engine-health-monitor/internal/logging"
	"engine-health-monitor/internal/metrics"
	"engine-health-monitor/internal/models"
	"engine-health-monitor/internal/parser"
	"engine-health-monitor/internal/publish"
	"engine-health-monitor/internal/report"
	"engine-health-monitor/internal/sensor"
)

var (
	cfg       *config.Config
	log       *logrus.Logger
	dbPath    string
	modelPath string
	logLevel  string
	database  *db.Database
)

func main() {
	cfg = config.Load()

	rootCmd := &cobra.Command{
		Use:   "engine-health",
		Short: "Engine Health Monitor - Vehicle engine diagnostics and health reports",
		Long: `A CLI tool for evaluating vehicle engine sensor readings.
Combines threshold diagnostics, battery scoring and a trained classifier
into health reports with SQLite storage, PDF export and REST API access.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log = logging.New(logLevel, true)
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", cfg.DBPath, "Path to SQLite database")
	rootCmd.PersistentFlags().StringVar(&modelPath, "model", cfg.ModelPath, "Path to classifier model artifact (empty disables the classifier)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")

	// Add commands
	rootCmd.AddCommand(serverCmd())
	rootCmd.AddCommand(assessCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(queryCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(modelCmd())
	rootCmd.AddCommand(vehicleCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initDB initializes database connection
func initDB() error {
	var err error
	database, err = db.New(dbPath)
	return err
}

// newAssembler resolves the model once and wires it with the rule table
func newAssembler(opts ...report.Option) *report.Assembler {
	handle := classifier.LoadHandle(modelPath, log)
	rules := diagnostics.NewEngine(cfg.Thresholds)
	return report.NewAssembler(rules, classifier.NewAdapter(handle), opts...)
}

// newProvider builds the configured sensor provider. The returned close
// function is always safe to call.
func newProvider(vehicleID string) (sensor.Provider, func()) {
	switch cfg.SensorSource {
	case "simulated":
		mode, err := sensor.ParseMode(cfg.SimulatorMode)
		if err != nil {
			log.WithError(err).Warn("Falling back to banded simulator")
			mode = sensor.ModeBanded
		}
		return sensor.NewSimulator(time.Now().UnixNano(), vehicleID, sensor.WithMode(mode)), func() {}
	case "http":
		timeout := time.Duration(cfg.SensorTimeoutMS) * time.Millisecond
		return sensor.NewHTTPProvider(cfg.SensorURL, timeout), func() {}
	case "mqtt":
		p, err := sensor.NewMQTTProvider(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic, time.Minute, log)
		if err != nil {
			log.WithError(err).Warn("MQTT sensor unavailable, manual input only")
			return nil, func() {}
		}
		return p, p.Close
	case "", "manual":
		return nil, func() {}
	default:
		log.WithField("source", cfg.SensorSource).Warn("Unknown sensor source, manual input only")
		return nil, func() {}
	}
}

// newPublisher connects to Redis when configured
func newPublisher(ctx context.Context) *publish.RedisPublisher {
	if cfg.RedisAddr == "" {
		return nil
	}
	p, err := publish.NewRedisPublisher(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, reports will not be published")
		return nil
	}
	return p
}

// serverCmd starts the REST API server
func serverCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			m := metrics.New()
			opts := []api.Option{api.WithMetrics(m)}

			provider, closeProvider := newProvider("")
			defer closeProvider()
			if provider != nil {
				opts = append(opts, api.WithProvider(provider))
			}

			if pub := newPublisher(cmd.Context()); pub != nil {
				defer pub.Close()
				opts = append(opts, api.WithPublisher(pub))
			}

			server := api.NewServer(database, newAssembler(report.WithObserver(m)), log, opts...)
			addr := fmt.Sprintf(":%d", port)

			fmt.Printf("🚀 Engine Health Monitor API Server\n")
			fmt.Printf("   Listening on http://localhost%s\n", addr)
			fmt.Printf("   Database: %s\n", dbPath)
			fmt.Printf("   Sensor source: %s\n\n", cfg.SensorSource)
			fmt.Println("Available endpoints:")
			fmt.Println("  GET  /health")
			fmt.Println("  GET  /metrics")
			fmt.Println("  GET  /api/v1/health")
			fmt.Println("  POST /api/v1/assess")
			fmt.Println("  POST /api/v1/assess/batch")
			fmt.Println("  GET  /api/v1/sensor/assess")
			fmt.Println("  GET  /api/v1/reports")
			fmt.Println("  GET  /api/v1/reports/{id}")
			fmt.Println("  GET  /api/v1/reports/{id}/pdf")
			fmt.Println("  GET  /api/v1/reports/latest/{vehicle_id}")
			fmt.Println("  GET  /api/v1/vehicles/{vehicle_id}/summary")
			fmt.Println("  GET  /api/v1/diagnostics")
			fmt.Println("  GET  /api/v1/stats")
			fmt.Println()

			return http.ListenAndServe(addr, server.Handler())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", cfg.HTTPPort, "Server port")
	return cmd
}

// assessCmd evaluates a single reading
func assessCmd() *cobra.Command {
	var fromSensor bool
	var vehicleID string
	var outputFormat string
	var pdfPath string
	var save bool

	reading := sensor.ManualDefault()

	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Evaluate one engine sensor reading",
		RunE: func(cmd *cobra.Command, args []string) error {
			rec := parser.Record{VehicleID: vehicleID, Reading: reading}
			if fromSensor {
				provider, closeProvider := newProvider(vehicleID)
				defer closeProvider()

				ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
				defer cancel()

				var live bool
				rec, live = sensor.ReadOrDefault(ctx, provider, log)
				if !live {
					fmt.Println("⚠️  Sensor unavailable, using manual default reading")
				}
				if vehicleID != "" {
					rec.VehicleID = vehicleID
				}
			} else if err := parser.ValidateReading(rec.Reading); err != nil {
				return err
			}

			rep := newAssembler().AssembleFor(rec.VehicleID, rec.Reading)

			if save {
				if err := initDB(); err != nil {
					return fmt.Errorf("database error: %w", err)
				}
				defer database.Close()
				if err := database.InsertReport(&rep); err != nil {
					return fmt.Errorf("error saving report: %w", err)
				}
				if pub := newPublisher(cmd.Context()); pub != nil {
					defer pub.Close()
					if err := pub.Publish(cmd.Context(), rep); err != nil {
						log.WithError(err).Warn("Failed to publish report")
					}
				}
			}

			switch outputFormat {
			case "json":
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(rep); err != nil {
					return err
				}
			default:
				printReport(rep)
				if save {
					fmt.Printf("\n✓ Saved report %s\n", rep.ID)
				}
			}

			if pdfPath != "" {
				if err := report.WritePDFFile(pdfPath, rep); err != nil {
					return fmt.Errorf("error writing PDF: %w", err)
				}
				fmt.Fprintf(os.Stderr, "PDF report written to %s\n", pdfPath)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&reading.EngineRPM, "rpm", reading.EngineRPM, "Engine RPM")
	cmd.Flags().Float64Var(&reading.LubOilPressure, "oil-pressure", reading.LubOilPressure, "Lub oil pressure (bar)")
	cmd.Flags().Float64Var(&reading.FuelPressure, "fuel-pressure", reading.FuelPressure, "Fuel pressure (bar)")
	cmd.Flags().Float64Var(&reading.CoolantPressure, "coolant-pressure", reading.CoolantPressure, "Coolant pressure (bar)")
	cmd.Flags().Float64Var(&reading.LubOilTemp, "oil-temp", reading.LubOilTemp, "Lub oil temperature (°C)")
	cmd.Flags().Float64Var(&reading.CoolantTemp, "coolant-temp", reading.CoolantTemp, "Coolant temperature (°C)")
	cmd.Flags().Float64Var(&reading.BatteryVoltage, "battery", reading.BatteryVoltage, "Battery voltage (V)")
	cmd.Flags().BoolVar(&fromSensor, "from-sensor", false, "Read from the configured sensor provider")
	cmd.Flags().StringVarP(&vehicleID, "vehicle", "V", "", "Vehicle ID")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json)")
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "Export the report to a PDF file")
	cmd.Flags().BoolVar(&save, "save", false, "Persist the report to the database")
	return cmd
}

// printReport renders a report for the terminal
func printReport(rep models.HealthReport) {
	r := rep.Reading
	fmt.Println("🔧 Vehicle Health Diagnostic Report")
	fmt.Println("===================================")
	if rep.VehicleID != "" {
		fmt.Printf("  Vehicle:           %s\n", rep.VehicleID)
	}
	fmt.Printf("  Engine RPM:        %d\n", r.EngineRPM)
	fmt.Printf("  Lub Oil Pressure:  %.2f bar\n", r.LubOilPressure)
	fmt.Printf("  Fuel Pressure:     %.2f bar\n", r.FuelPressure)
	fmt.Printf("  Coolant Pressure:  %.2f bar\n", r.CoolantPressure)
	fmt.Printf("  Lub Oil Temp:      %.1f°C\n", r.LubOilTemp)
	fmt.Printf("  Coolant Temp:      %.1f°C\n", r.CoolantTemp)
	fmt.Printf("  Temp Difference:   %.1f°C\n", rep.Derived.TempDiff)
	fmt.Printf("  Battery Voltage:   %.2f V\n", r.BatteryVoltage)
	fmt.Println()
	fmt.Printf("  Battery:           %s (score %d)\n", rep.Battery.Status.DisplayText(), rep.Battery.Score)

	if rep.Classifier.Available() {
		fmt.Printf("  Condition:         %s\n", rep.Classifier.PredictedLabel)
		var parts []string
		for _, l := range models.KnownLabels {
			parts = append(parts, fmt.Sprintf("%s %.1f%%", l, rep.Classifier.Probability(l)))
		}
		fmt.Printf("  Probabilities:     %s\n", strings.Join(parts, " | "))
	} else {
		fmt.Println("  Condition:         Unknown (model not loaded)")
	}

	fmt.Println()
	fmt.Println("  Diagnostics:")
	for i, sys := range rep.Diagnostics.AffectedSystems {
		marker := "⚠️ "
		if rep.Diagnostics.Nominal() {
			marker = "✓"
		}
		fmt.Printf("    %s %s\n", marker, sys)
		fmt.Printf("       %s\n", rep.Diagnostics.Advisories[i])
	}
}

// ingestCmd evaluates readings from files
func ingestCmd() *cobra.Command {
	var format string
	var vehicleID string

	cmd := &cobra.Command{
		Use:   "ingest [file...]",
		Short: "Evaluate and store sensor readings from files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			assembler := newAssembler()
			p := parser.NewParser(format, log)
			totalReports := 0
			totalErrors := 0

			for _, file := range args {
				fmt.Printf("Processing %s...\n", file)
				start := time.Now()

				records, err := p.ParseFile(file)
				if err != nil {
					fmt.Printf("  Error: %v\n", err)
					totalErrors++
					continue
				}

				reports := make([]models.HealthReport, 0, len(records))
				for _, rec := range records {
					id := rec.VehicleID
					if id == "" {
						id = vehicleID
					}
					reports = append(reports, assembler.AssembleFor(id, rec.Reading))
				}

				count, err := database.InsertReportBatch(reports)
				if err != nil {
					fmt.Printf("  Database error: %v\n", err)
					totalErrors++
					continue
				}

				elapsed := time.Since(start)
				fmt.Printf("  ✓ Evaluated %d readings in %v (%.0f readings/sec)\n",
					count, elapsed, float64(count)/elapsed.Seconds())
				totalReports += int(count)
			}

			fmt.Printf("\nTotal: %d reports stored", totalReports)
			if totalErrors > 0 {
				fmt.Printf(", %d errors", totalErrors)
			}
			fmt.Println()

			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "csv", "File format (csv, json, log)")
	cmd.Flags().StringVarP(&vehicleID, "vehicle", "V", "", "Vehicle ID for readings that carry none")
	return cmd
}

// queryCmd lists stored reports
func queryCmd() *cobra.Command {
	var vehicleID string
	var label string
	var startTime string
	var endTime string
	var limit int
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query stored health reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			q := models.ReportQuery{
				VehicleID: vehicleID,
				Label:     models.HealthLabel(label),
				Limit:     limit,
			}

			if startTime != "" {
				t, err := time.Parse(time.RFC3339, startTime)
				if err != nil {
					return fmt.Errorf("invalid start_time format (use RFC3339): %w", err)
				}
				q.StartTime = t
			}

			if endTime != "" {
				t, err := time.Parse(time.RFC3339, endTime)
				if err != nil {
					return fmt.Errorf("invalid end_time format (use RFC3339): %w", err)
				}
				q.EndTime = t
			}

			start := time.Now()
			results, err := database.QueryReports(q)
			if err != nil {
				return fmt.Errorf("query error: %w", err)
			}
			elapsed := time.Since(start)

			switch outputFormat {
			case "json":
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				enc.Encode(results)
			default:
				fmt.Printf("Found %d reports (query time: %v)\n\n", len(results), elapsed)
				for _, r := range results {
					fmt.Printf("[%s] %s | Vehicle: %s | Condition: %s | Battery: %s | Temp diff: %.1f°C\n",
						r.GeneratedAt.Format("2006-01-02 15:04:05"),
						r.ID, r.VehicleID, r.Classifier.PredictedLabel,
						r.Battery.Status, r.Derived.TempDiff)
					if !r.Diagnostics.Nominal() {
						fmt.Printf("     ⚠️  Affected: %s\n", strings.Join(r.Diagnostics.AffectedSystems, ", "))
					}
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&vehicleID, "vehicle", "V", "", "Filter by vehicle ID")
	cmd.Flags().StringVar(&label, "label", "", "Filter by predicted condition (Healthy, Warning, Critical, Unknown)")
	cmd.Flags().StringVarP(&startTime, "start", "s", "", "Start time (RFC3339)")
	cmd.Flags().StringVarP(&endTime, "end", "e", "", "End time (RFC3339)")
	cmd.Flags().IntVarP(&limit, "limit", "l", 100, "Maximum reports to return")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json)")
	return cmd
}

// statsCmd shows database statistics
func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			stats, err := database.GetStats()
			if err != nil {
				return fmt.Errorf("error getting stats: %w", err)
			}

			fmt.Println("📊 Engine Health Monitor Statistics")
			fmt.Println("===================================")
			fmt.Printf("  Total Reports:      %v\n", stats["total_reports"])
			fmt.Printf("  Total Vehicles:     %v\n", stats["total_vehicles"])
			fmt.Printf("  Reports w/ Faults:  %v\n", stats["reports_with_faults"])
			if byLabel, ok := stats["reports_by_label"].(map[string]int64); ok {
				for _, l := range append(models.KnownLabels, models.LabelUnknown) {
					fmt.Printf("    %-17s %d\n", string(l)+":", byLabel[string(l)])
				}
			}
			fmt.Printf("  Database:           %s\n", dbPath)

			return nil
		},
	}
}

// generateCmd synthesizes readings and stores their reports
func generateCmd() *cobra.Command {
	var count int
	var vehicleCount int
	var seed int64
	var modeName string
	var output string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate sample readings and health reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			if vehicleCount < 1 {
				return fmt.Errorf("--vehicles must be at least 1")
			}
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			mode, err := sensor.ParseMode(modeName)
			if err != nil {
				return err
			}
			if seed == 0 {
				seed = time.Now().UnixNano()
			}

			sims := make([]*sensor.Simulator, vehicleCount)
			for i := range sims {
				sims[i] = sensor.NewSimulator(seed+int64(i), fmt.Sprintf("VEH-%03d", i+1), sensor.WithMode(mode))
			}

			assembler := newAssembler()
			var payloads []parser.ReadingPayload
			var reports []models.HealthReport

			for i := 0; i < count; i++ {
				rec, err := sims[i%vehicleCount].Read(cmd.Context())
				if err != nil {
					return err
				}
				payloads = append(payloads, rec.Payload())
				reports = append(reports, assembler.AssembleFor(rec.VehicleID, rec.Reading))
			}

			// Insert in batches of 1000
			start := time.Now()
			batchSize := 1000
			inserted := 0

			for i := 0; i < len(reports); i += batchSize {
				end := i + batchSize
				if end > len(reports) {
					end = len(reports)
				}
				n, err := database.InsertReportBatch(reports[i:end])
				if err != nil {
					return fmt.Errorf("database error: %w", err)
				}
				inserted += int(n)
				fmt.Printf("\rStored %d/%d reports...", inserted, len(reports))
			}

			elapsed := time.Since(start)
			fmt.Printf("\n✓ Generated %d health reports for %d vehicles in %v\n",
				inserted, vehicleCount, elapsed)

			// Export readings to file if requested
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("error creating output file: %w", err)
				}
				defer file.Close()

				enc := json.NewEncoder(file)
				enc.SetIndent("", "  ")
				if err := enc.Encode(payloads); err != nil {
					return fmt.Errorf("error writing output file: %w", err)
				}
				fmt.Printf("Readings exported to %s\n", output)
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "c", 1000, "Number of readings to generate")
	cmd.Flags().IntVarP(&vehicleCount, "vehicles", "n", 10, "Number of vehicles to simulate")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (0 uses the current time)")
	cmd.Flags().StringVar(&modeName, "mode", string(sensor.ModeBanded), "Generator mode (banded, correlated)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Export generated readings to JSON file")
	return cmd
}

// reportCmd exports a stored report to PDF
func reportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "report [report_id]",
		Short: "Export a stored health report to PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			rep, err := database.GetReport(args[0])
			if err != nil {
				return fmt.Errorf("error loading report: %w", err)
			}

			if out == "" {
				out = fmt.Sprintf("vehicle_health_report_%s.pdf", rep.ID)
			}
			if err := report.WritePDFFile(out, *rep); err != nil {
				return fmt.Errorf("error writing PDF: %w", err)
			}
			fmt.Printf("✓ Report %s written to %s\n", rep.ID, out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Output PDF path")
	return cmd
}

// modelCmd inspects the classifier artifact
func modelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Classifier model commands",
	}

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Load the model artifact and print its classes and feature order",
		RunE: func(cmd *cobra.Command, args []string) error {
			if modelPath == "" {
				return fmt.Errorf("no model artifact configured")
			}
			f, err := classifier.LoadForest(modelPath)
			if err != nil {
				return err
			}

			name := f.Name
			if name == "" {
				name = "(unnamed)"
			}
			fmt.Printf("🌲 Classifier Model %s\n", name)
			fmt.Println("==========================================")
			fmt.Printf("  Artifact:  %s\n", modelPath)
			fmt.Printf("  Trees:     %d\n", len(f.Trees))
			fmt.Printf("  Classes:   %v\n", f.Classes())
			fmt.Println("  Features:")
			for i, feat := range f.Features {
				fmt.Printf("    %d. %s\n", i+1, feat)
			}
			return nil
		},
	}

	cmd.AddCommand(inspectCmd)
	return cmd
}

// vehicleCmd shows per-vehicle aggregates
func vehicleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vehicle",
		Short: "Vehicle report commands",
	}

	// Summary subcommand
	summaryCmd := &cobra.Command{
		Use:   "summary [vehicle_id]",
		Short: "Show vehicle health summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			start := time.Now()
			summary, err := database.GetReportSummary(args[0])
			if err != nil {
				return fmt.Errorf("error getting summary: %w", err)
			}
			elapsed := time.Since(start)

			fmt.Printf("📈 Health Summary for %s (query: %v)\n", args[0], elapsed)
			fmt.Println("==========================================")
			fmt.Printf("  Total Reports:      %d\n", summary.TotalReports)
			fmt.Printf("  Critical Reports:   %d\n", summary.CriticalReports)
			fmt.Printf("  Faulty Evaluations: %d\n", summary.FaultyEvaluations)
			fmt.Printf("  Avg Battery Score:  %.1f\n", summary.AvgBatteryScore)
			fmt.Printf("  Avg Temp Diff:      %.1f°C\n", summary.AvgTempDiff)

			return nil
		},
	}

	// Faults subcommand
	faultsCmd := &cobra.Command{
		Use:   "faults [vehicle_id]",
		Short: "Show affected-system counts for a vehicle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			counts, err := database.GetFaultCounts(args[0], 20)
			if err != nil {
				return fmt.Errorf("error getting faults: %w", err)
			}
			if len(counts) == 0 {
				fmt.Println("No faults recorded.")
				return nil
			}

			fmt.Printf("%-40s %-6s %s\n", "Affected System", "Count", "Last Seen")
			fmt.Println(strings.Repeat("-", 70))
			for _, c := range counts {
				fmt.Printf("%-40s %-6d %s\n", c.AffectedSystem, c.Count, c.LastSeen.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}

	cmd.AddCommand(summaryCmd, faultsCmd)
	return cmd
}
