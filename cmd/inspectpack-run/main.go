package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/inspectpack/core/internal/config"
	"github.com/inspectpack/core/pkg/contract"
	"github.com/inspectpack/core/pkg/logging"
	"github.com/inspectpack/core/pkg/packet"
	"github.com/inspectpack/core/pkg/pipeline"
	"github.com/inspectpack/core/pkg/providers"
	"github.com/inspectpack/core/pkg/runlog"
	"github.com/inspectpack/core/pkg/validate"
)

// summaryOut is stdout wrapped for ANSI color on Windows consoles; color
// itself is disabled below when stdout isn't a terminal.
var summaryOut = colorable.NewColorableStdout()

func init() {
	color.NoColor = !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func printSummary(result runlog.Result, reason string) {
	switch result {
	case runlog.ResultAccepted:
		color.New(color.FgGreen, color.Bold).Fprintf(summaryOut, "ACCEPTED\n")
	case runlog.ResultRejected:
		color.New(color.FgRed, color.Bold).Fprintf(summaryOut, "REJECTED")
		if reason != "" {
			color.New(color.FgRed).Fprintf(summaryOut, ": %s", reason)
		}
		fmt.Fprintln(summaryOut)
	default:
		fmt.Fprintln(summaryOut, string(result))
	}
}

const version = "0.1.0"

var (
	contractPath  string
	configPath    string
	jobsRoot      string
	woNo          string
	line          string
	packetPath    string
	overridesPath string
	logLevel      string
	watch         bool
	rootCmd       *cobra.Command
	versionFlag   bool
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "inspectpack-run",
		Short: "Run one manufacturing inspection packet through the pipeline",
		Long:  `Run one manufacturing inspection packet through the pipeline`,
		Run:   runPipeline,
	}

	rootCmd.Flags().StringVar(&contractPath, "contract", "", "Path to the field/slot contract YAML (required)")
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to the pipeline configuration YAML (defaults applied if omitted)")
	rootCmd.Flags().StringVar(&jobsRoot, "jobs-root", "", "Root directory holding job directories (required)")
	rootCmd.Flags().StringVar(&woNo, "wo-no", "", "Work order number (required)")
	rootCmd.Flags().StringVar(&line, "line", "", "Line identifier (required)")
	rootCmd.Flags().StringVar(&packetPath, "packet", "", "Path to a raw intake packet JSON document (required)")
	rootCmd.Flags().StringVar(&overridesPath, "overrides", "", "Path to an override submissions JSON document")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&watch, "watch", false, "After the first run, re-run whenever a file lands in the job's photos/raw directory")
	rootCmd.Flags().BoolVarP(&versionFlag, "version", "V", false, "Show version information")

	for _, name := range []string{"contract", "jobs-root", "wo-no", "line", "packet"} {
		if err := rootCmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
}

func main() {
	// Handle --version or -V before cobra parses other flags.
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-V") {
		fmt.Printf("inspectpack-run %s\n", version)
		fmt.Printf("Built: %s\n", buildTimestamp())
		os.Exit(0)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildTimestamp() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.time" {
				if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
					return t.UTC().Format(time.RFC3339)
				}
			}
		}
	}
	return time.Now().UTC().Format(time.RFC3339)
}

// intakeDocument is the on-disk shape of the --packet JSON file: a raw
// packet plus the work order's measurement rows, collapsed into one
// document for CLI convenience. Override submissions are read separately
// from the --overrides file.
type intakeDocument struct {
	Fields          map[string]packet.RawValue `json:"fields"`
	MeasurementRows []packet.RawMeasurementRow `json:"measurement_rows"`
}

type overrideSubmissionDocument struct {
	FieldOrSlot string `json:"field_or_slot"`
	Code        string `json:"code"`
	Detail      string `json:"detail"`
	ActingUser  string `json:"acting_user"`
}

func runPipeline(cmd *cobra.Command, args []string) {
	if versionFlag {
		fmt.Printf("inspectpack-run %s\n", version)
		fmt.Printf("Built: %s\n", buildTimestamp())
		return
	}

	if logLevel == "" {
		logLevel = logging.GetLogLevel()
	}

	var runCounter atomic.Int64
	var logger hclog.Logger
	if watch {
		logger = logging.NewWatchLogger("inspectpack-run", logLevel, os.Stderr, &runCounter)
	} else {
		logger = logging.NewLogger("inspectpack-run", logLevel, os.Stderr)
	}

	c, err := contract.Load(contractPath)
	if err != nil {
		fail(err)
	}

	cfg := config.Default()
	if configPath != "" {
		cfg, err = config.Load(configPath)
		if err != nil {
			fail(err)
		}
	}

	raw, err := readIntakeDocument(packetPath)
	if err != nil {
		fail(err)
	}

	submissions, err := readOverrideSubmissions(overridesPath)
	if err != nil {
		fail(err)
	}

	p := pipeline.New(jobsRoot, c, cfg, logger, providers.StubOCREngine{})

	runOnce := func() error {
		runCounter.Add(1)
		out, runErr := p.Run(context.Background(), pipeline.Input{
			WONo:                woNo,
			Line:                line,
			Raw:                 raw,
			OverrideSubmissions: submissions,
			Now:                 time.Now().UTC(),
		})
		if out != nil && out.Record != nil {
			data, marshalErr := json.MarshalIndent(out.Record, "", "  ")
			if marshalErr == nil {
				fmt.Println(string(data))
			}
			printSummary(out.Record.Result, out.Record.RejectReason)
		}
		return runErr
	}

	if runErr := runOnce(); runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		if !watch {
			os.Exit(1)
		}
	}

	if !watch {
		return
	}

	if err := watchAndRerun(jobsRoot, woNo, line, logger, runOnce); err != nil {
		fail(err)
	}
}

// watchAndRerun re-invokes runOnce whenever a file lands in the job's
// photos/raw directory, for operators feeding in photos from a scanning
// station as they arrive rather than all at once.
func watchAndRerun(jobsRoot, woNo, line string, logger hclog.Logger, runOnce func() error) error {
	rawDir := filepath.Join(jobsRoot, pipeline.JobDirName(woNo, line), "photos", "raw")
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		return fmt.Errorf("inspectpack-run: prepare watch directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("inspectpack-run: new watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(rawDir); err != nil {
		return fmt.Errorf("inspectpack-run: watch %s: %w", rawDir, err)
	}

	logger.Info("watching for new photos", "dir", rawDir)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			logger.Info("new photo detected, re-running pipeline", "path", event.Name)
			if err := runOnce(); err != nil {
				logger.Warn("watch-triggered run failed", "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)
		}
	}
}

func readIntakeDocument(path string) (*packet.RawPacket, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("inspectpack-run: read %s: %w", path, err)
	}
	var doc intakeDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("inspectpack-run: parse %s: %w", path, err)
	}
	return &packet.RawPacket{Fields: doc.Fields, MeasurementRows: doc.MeasurementRows}, nil
}

func readOverrideSubmissions(path string) (map[string]validate.OverrideSubmission, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("inspectpack-run: read %s: %w", path, err)
	}
	var docs map[string]overrideSubmissionDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("inspectpack-run: parse %s: %w", path, err)
	}
	submissions := make(map[string]validate.OverrideSubmission, len(docs))
	for key, d := range docs {
		submissions[key] = validate.OverrideSubmission{
			FieldOrSlot: d.FieldOrSlot,
			Code:        d.Code,
			Detail:      d.Detail,
			ActingUser:  d.ActingUser,
		}
	}
	return submissions, nil
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
