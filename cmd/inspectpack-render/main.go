package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/spf13/cobra"

	"github.com/inspectpack/core/pkg/contract"
	"github.com/inspectpack/core/pkg/packet"
	"github.com/inspectpack/core/pkg/render"
)

const version = "0.1.0"

var (
	contractPath     string
	packetPath       string
	photoSourcesPath string

	docTemplatePath string
	docManifestPath string
	docOutputPath   string

	wbTemplatePath string
	wbManifestPath string
	wbOutputPath   string

	rootCmd     *cobra.Command
	versionFlag bool
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "inspectpack-render",
		Short: "Render a report document and/or measurement workbook from an already-normalized packet",
		Long:  `Render a report document and/or measurement workbook from an already-normalized packet`,
		Run:   renderArtifacts,
	}

	rootCmd.Flags().StringVar(&contractPath, "contract", "", "Path to the field/slot contract YAML (required)")
	rootCmd.Flags().StringVar(&packetPath, "packet", "", "Path to a normalized packet JSON document (required)")
	rootCmd.Flags().StringVar(&photoSourcesPath, "photo-sources", "", "Path to a JSON document mapping slot key to source photo path")

	rootCmd.Flags().StringVar(&docTemplatePath, "document-template", "", "Path to the report document OOXML template")
	rootCmd.Flags().StringVar(&docManifestPath, "document-manifest", "", "Path to the document manifest YAML")
	rootCmd.Flags().StringVar(&docOutputPath, "document-output", "", "Output path for the rendered document")

	rootCmd.Flags().StringVar(&wbTemplatePath, "workbook-template", "", "Path to the measurement workbook OOXML template")
	rootCmd.Flags().StringVar(&wbManifestPath, "workbook-manifest", "", "Path to the workbook manifest YAML")
	rootCmd.Flags().StringVar(&wbOutputPath, "workbook-output", "", "Output path for the rendered workbook")

	rootCmd.Flags().BoolVarP(&versionFlag, "version", "V", false, "Show version information")

	for _, name := range []string{"contract", "packet"} {
		if err := rootCmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
}

func main() {
	// Handle --version or -V before cobra parses other flags.
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-V") {
		fmt.Printf("inspectpack-render %s\n", version)
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

type normalizedPacketDocument struct {
	Fields          map[string]*string                  `json:"fields"`
	MeasurementRows []packet.NormalizedMeasurementRow `json:"measurement_rows"`
}

func renderArtifacts(cmd *cobra.Command, args []string) {
	if versionFlag {
		fmt.Printf("inspectpack-render %s\n", version)
		fmt.Printf("Built: %s\n", buildTimestamp())
		return
	}

	if docTemplatePath == "" && wbTemplatePath == "" {
		fail(fmt.Errorf("inspectpack-render: at least one of --document-template or --workbook-template is required"))
	}

	c, err := contract.Load(contractPath)
	if err != nil {
		fail(err)
	}

	pkt, err := readNormalizedPacket(packetPath)
	if err != nil {
		fail(err)
	}

	photoSources, err := readPhotoSources(photoSourcesPath)
	if err != nil {
		fail(err)
	}

	if docTemplatePath != "" {
		if docManifestPath == "" || docOutputPath == "" {
			fail(fmt.Errorf("inspectpack-render: --document-manifest and --document-output are required with --document-template"))
		}
		manifestData, err := os.ReadFile(docManifestPath)
		if err != nil {
			fail(err)
		}
		manifest, err := render.LoadDocumentManifest(manifestData)
		if err != nil {
			fail(err)
		}
		if _, err := render.RenderDocument(docTemplatePath, docOutputPath, manifest, c, pkt, photoSources); err != nil {
			fail(err)
		}
		fmt.Printf("wrote %s\n", docOutputPath)
	}

	if wbTemplatePath != "" {
		if wbManifestPath == "" || wbOutputPath == "" {
			fail(fmt.Errorf("inspectpack-render: --workbook-manifest and --workbook-output are required with --workbook-template"))
		}
		manifestData, err := os.ReadFile(wbManifestPath)
		if err != nil {
			fail(err)
		}
		manifest, err := render.LoadWorkbookManifest(manifestData)
		if err != nil {
			fail(err)
		}
		if err := render.RenderWorkbook(wbTemplatePath, wbOutputPath, manifest, pkt); err != nil {
			fail(err)
		}
		fmt.Printf("wrote %s\n", wbOutputPath)
	}
}

func readNormalizedPacket(path string) (*packet.NormalizedPacket, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("inspectpack-render: read %s: %w", path, err)
	}
	var doc normalizedPacketDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("inspectpack-render: parse %s: %w", path, err)
	}
	return &packet.NormalizedPacket{Fields: doc.Fields, MeasurementRows: doc.MeasurementRows}, nil
}

func readPhotoSources(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("inspectpack-render: read %s: %w", path, err)
	}
	var sources map[string]string
	if err := json.Unmarshal(data, &sources); err != nil {
		return nil, fmt.Errorf("inspectpack-render: parse %s: %w", path, err)
	}
	return sources, nil
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
