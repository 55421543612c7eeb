package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joelkehle/conference-insight/internal/logger"
)

// MergeStats summarizes one MergeInsights run per field.
type MergeStats struct {
	Field    string `json:"field"`
	Eligible int    `json:"eligible"`
	Merged   int    `json:"merged"`
	Failed   int    `json:"failed"`
}

// Merger fuses list-valued note cells into one text per row.
type Merger struct {
	exec  *Executor
	terms []Replacement
	log   *logger.Logger
}

func NewMerger(exec *Executor, terms []Replacement, log *logger.Logger) *Merger {
	if log == nil {
		log = logger.Nop()
	}
	return &Merger{exec: exec, terms: terms, log: log}
}

// MergeInsights asks the model to fuse every cell of fields holding a list
// with more than one item and stores the answer in "<field> merged". A row
// that fails is logged and left blank.
func (m *Merger) MergeInsights(ctx context.Context, t *Table, fields []string) ([]MergeStats, error) {
	for _, f := range fields {
		if !t.Has(f) {
			return nil, fmt.Errorf("merge insights: column %q not found", f)
		}
	}
	stats := make([]MergeStats, 0, len(fields))
	for _, field := range fields {
		st := MergeStats{Field: field}
		merged := MergedColumn(field)
		t.EnsureColumn(merged)
		for r := range t.Rows {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			items, ok := ParseInsightList(t.Get(r, field))
			if !ok || len(items) <= 1 {
				continue
			}
			st.Eligible++
			out, _, err := m.exec.Run(ctx, "merge_insights", mergeInsightsPrompt, PreprocessPrompt(marshalList(items), m.terms))
			if err != nil {
				st.Failed++
				m.log.Warn("merge insights row failed", "field", field, "row", r, "error", err)
				continue
			}
			t.Set(r, merged, out)
			st.Merged++
		}
		m.log.Info("merged insight field", "field", strings.ReplaceAll(field, "\n", " "), "eligible", st.Eligible, "merged", st.Merged, "failed", st.Failed)
		stats = append(stats, st)
	}
	return stats, nil
}

// Highlights asks the model for the daily digest of a rendered report.
func (m *Merger) Highlights(ctx context.Context, reportMarkdown string) (string, AttemptMetrics, error) {
	return m.exec.Run(ctx, "daily_highlights", dailyHighlightsPrompt, reportMarkdown)
}

func marshalList(items []string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(items)
	return strings.TrimSpace(buf.String())
}
