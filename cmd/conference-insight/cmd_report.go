package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joelkehle/conference-insight/internal/insights"
	"github.com/joelkehle/conference-insight/internal/render"
)

func newMerger() (*insights.Merger, *insights.Executor, error) {
	if err := cfg.RequireLLM(); err != nil {
		return nil, nil, err
	}
	caller, err := insights.NewCaller(cfg.LLMSettings())
	if err != nil {
		return nil, nil, err
	}
	exec := insights.NewExecutor(caller, log).WithCallTimeout(cfg.LLMTimeout())
	return insights.NewMerger(exec, cfg.Report.Anonymize, log), exec, nil
}

var mergeInsightsCmd = &cobra.Command{
	Use:   "merge-insights <notes.csv>",
	Short: "Fuse multi-expert notes into one text per session with the LLM",
	Long: `merge-insights reads a notes table, asks the model to merge every cell of
the fact and insight columns that holds more than one expert note, and writes
the result to "<column> merged" columns.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := args[0]
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = trimExt(input) + "_merged.csv"
		}
		fields, _ := cmd.Flags().GetStringSlice("fields")
		if len(fields) == 0 {
			fields = cfg.Report.Columns.MergeFields()
		}

		t, err := insights.ReadTableFile(input)
		if err != nil {
			return err
		}
		merger, exec, err := newMerger()
		if err != nil {
			return err
		}

		log.Info("merging insights", "input", input, "rows", len(t.Rows), "model", exec.ModelName())
		stats, err := merger.MergeInsights(cmd.Context(), t, fields)
		if err != nil {
			return err
		}
		if err := insights.WriteTableFile(output, t); err != nil {
			return err
		}
		for _, st := range stats {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d eligible, %d merged, %d failed\n",
				strings.ReplaceAll(st.Field, "\n", " "), st.Eligible, st.Merged, st.Failed)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
		return nil
	},
}

var dailyReportCmd = &cobra.Command{
	Use:   "daily-report <notes.csv>",
	Short: "Build the daily Markdown report from a (merged) notes table",
	Long: `daily-report renders one section per session of the notes table and saves
the Markdown next to a JSON envelope that render-report can rebuild from.
With --highlights the model also writes the daily highlights digest.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := args[0]
		outDir, _ := cmd.Flags().GetString("output-dir")
		if outDir == "" {
			outDir = cfg.Report.OutputDir
		}
		withHighlights, _ := cmd.Flags().GetBool("highlights")

		t, err := insights.ReadTableFile(input)
		if err != nil {
			return err
		}
		markdown, entries := insights.BuildDailyReport(t, cfg.Report.Columns, cfg.Report.Layout)
		env := insights.NewEnvelope(filepath.Base(input), cfg.Report.Layout, entries, markdown)

		if withHighlights {
			merger, exec, err := newMerger()
			if err != nil {
				return err
			}
			highlights, metrics, err := merger.Highlights(cmd.Context(), markdown)
			env.Attempts["daily_highlights"] = metrics
			if err != nil {
				return err
			}
			env.Highlights = highlights
			env.Model = exec.ModelName()
		}

		base := filepath.Join(outDir, trimExt(filepath.Base(input))+"_report")
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(base+".md", []byte(env.Document()), 0o644); err != nil {
			return err
		}
		if err := insights.SaveEnvelope(base+".json", env); err != nil {
			return err
		}
		log.Info("daily report written", "report_id", env.ReportID, "entries", len(entries), "highlights", withHighlights)
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s.md and %s.json\n", base, base)
		return nil
	},
}

var renderReportCmd = &cobra.Command{
	Use:   "render-report <report.json|report.md>",
	Short: "Render a saved report to HTML or PDF",
	Long: `render-report prints a report envelope (or a plain Markdown file) as HTML or,
through headless Chromium, as PDF. With --rebuild the Markdown is re-rendered
from the envelope's saved entries without calling the model.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := args[0]
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		rebuild, _ := cmd.Flags().GetBool("rebuild")
		chromePath, _ := cmd.Flags().GetString("chrome")
		format = strings.ToLower(format)
		if format != "html" && format != "pdf" {
			return fmt.Errorf("--format must be html or pdf")
		}
		if output == "" {
			output = trimExt(input) + "." + format
		}

		var (
			markdown string
			meta     render.Meta
		)
		if strings.EqualFold(filepath.Ext(input), ".json") {
			env, err := insights.LoadEnvelope(input)
			if err != nil {
				return err
			}
			if rebuild {
				if env, err = insights.RebuildFromEnvelope(env); err != nil {
					return err
				}
				if err := insights.SaveEnvelope(input, env); err != nil {
					return err
				}
			}
			markdown = env.Document()
			meta = render.Meta{
				Title:    env.Layout.Title,
				ReportID: env.ReportID,
				Date:     env.CreatedAt.Format(time.DateOnly),
				Source:   env.Source,
			}
		} else {
			blob, err := os.ReadFile(input)
			if err != nil {
				return err
			}
			markdown = string(blob)
			meta = render.Meta{Title: cfg.Report.Layout.Title, Source: filepath.Base(input)}
		}

		css, err := render.LoadCSS(cfg.Report.Stylesheet)
		if err != nil {
			return err
		}
		var out []byte
		switch format {
		case "html":
			doc, err := render.HTML(markdown, meta, css)
			if err != nil {
				return err
			}
			out = []byte(doc)
		case "pdf":
			pdf, err := render.NewPDFRenderer(chromePath, css).Render(cmd.Context(), markdown, meta)
			if err != nil {
				return fmt.Errorf("render pdf: %w", err)
			}
			out = pdf
		}
		if err := os.WriteFile(output, out, 0o644); err != nil {
			return err
		}
		log.Info("report rendered", "input", input, "output", output, "format", format)
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
		return nil
	},
}

func init() {
	mergeInsightsCmd.Flags().StringP("output", "o", "", "Output CSV (default <input>_merged.csv)")
	mergeInsightsCmd.Flags().StringSlice("fields", nil, "Columns to merge (default: report facts and insights columns)")

	dailyReportCmd.Flags().String("output-dir", "", "Directory for the report files (default report.output_dir)")
	dailyReportCmd.Flags().Bool("highlights", false, "Ask the model for the daily highlights digest")

	renderReportCmd.Flags().String("format", "html", "Output format: html or pdf")
	renderReportCmd.Flags().StringP("output", "o", "", "Output file (default <input>.<format>)")
	renderReportCmd.Flags().Bool("rebuild", false, "Re-render the markdown from saved entries and update the envelope")
	renderReportCmd.Flags().String("chrome", "", "Chromium binary (default: CHROME_PATH or a well-known path)")
}
