package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/use-agent/sitelens/analyzer"
	"github.com/use-agent/sitelens/archive"
	"github.com/use-agent/sitelens/models"
	"github.com/use-agent/sitelens/render"
)

var (
	analyzeFormat  string
	analyzeTimeout int

	imagesOutput string
)

// analyzeCmd prints a report for one domain.
var analyzeCmd = &cobra.Command{
	Use:   "analyze <domain>",
	Short: "Analyze a domain and print its report",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

// imagesCmd downloads every image of a domain into a zip file.
var imagesCmd = &cobra.Command{
	Use:   "images <domain>",
	Short: "Download all images of a domain into a zip archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runImages,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", "text", "output format: json, markdown or text")
	analyzeCmd.Flags().IntVar(&analyzeTimeout, "timeout", 0, "upstream timeout in seconds (default from config)")

	imagesCmd.Flags().StringVarP(&imagesOutput, "output", "o", "", "output file (default <domain>-images.zip)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	switch analyzeFormat {
	case "json", "markdown", "text":
	default:
		return fmt.Errorf("unknown format %q (want json, markdown or text)", analyzeFormat)
	}

	cfg := loadConfig()
	initLogger(cfg.Log, os.Stderr)

	svc, err := newServices(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	result, err := svc.analyzer.Analyze(cmd.Context(), args[0], analyzer.Options{
		Timeout: time.Duration(analyzeTimeout) * time.Second,
	})
	if err != nil {
		return err
	}
	return writeReport(cmd.OutOrStdout(), svc.renderer, result.Report, analyzeFormat)
}

func writeReport(w io.Writer, rnd *render.Renderer, rep *models.Report, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "markdown":
		md, err := rnd.Markdown(rep)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, md)
		return err
	default:
		_, err := io.WriteString(w, render.Text(rep))
		return err
	}
}

func runImages(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	initLogger(cfg.Log, os.Stderr)

	svc, err := newServices(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	result, err := svc.analyzer.Analyze(cmd.Context(), args[0], analyzer.Options{})
	if err != nil {
		return err
	}
	rep := result.Report
	if len(rep.Images) == 0 {
		return models.NewSiteError(models.ErrCodeNoImages, "no downloadable images for "+rep.Domain, nil)
	}

	out := imagesOutput
	if out == "" {
		out = archive.FileName(rep.Domain)
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}

	manifest, buildErr := svc.builder.Build(cmd.Context(), f, rep.Domain, rep.Images)
	if err := f.Close(); err != nil && buildErr == nil {
		buildErr = err
	}
	if manifest != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d fetched, %d failed, %d skipped (%d bytes)\n",
			out, manifest.Fetched, manifest.Failed, manifest.Skipped, manifest.Bytes)
	}
	return buildErr
}
