package insights

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReportEnvelope is the saved form of one daily report run. Markdown can be
// rebuilt from Entries without calling a model again.
type ReportEnvelope struct {
	ReportID   string                    `json:"report_id"`
	CreatedAt  time.Time                 `json:"created_at"`
	Source     string                    `json:"source,omitempty"`
	Layout     Layout                    `json:"layout"`
	Entries    []DailyEntry              `json:"entries"`
	Markdown   string                    `json:"report_markdown"`
	Highlights string                    `json:"highlights_markdown,omitempty"`
	Model      string                    `json:"model,omitempty"`
	Merge      []MergeStats              `json:"merge,omitempty"`
	Attempts   map[string]AttemptMetrics `json:"attempts,omitempty"`
}

// NewEnvelope stamps a fresh report id and creation time.
func NewEnvelope(source string, layout Layout, entries []DailyEntry, markdown string) ReportEnvelope {
	return ReportEnvelope{
		ReportID:  uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Source:    source,
		Layout:    layout,
		Entries:   entries,
		Markdown:  markdown,
		Attempts:  map[string]AttemptMetrics{},
	}
}

// RebuildFromEnvelope re-renders the report markdown from saved entries.
// Highlights are kept as saved.
func RebuildFromEnvelope(env ReportEnvelope) (ReportEnvelope, error) {
	if strings.TrimSpace(env.ReportID) == "" {
		return ReportEnvelope{}, errors.New("envelope has no report_id")
	}
	if env.Entries == nil {
		return ReportEnvelope{}, fmt.Errorf("envelope %s has no entries", env.ReportID)
	}
	layout := env.Layout
	if layout.Title == "" {
		layout.Title = DefaultLayout().Title
	}
	if layout.InsightsHeading == "" {
		layout.InsightsHeading = DefaultLayout().InsightsHeading
	}
	env.Layout = layout
	env.Markdown = RenderDailyReport(env.Entries, layout)
	return env, nil
}

// Document is the printable report: the digest followed by the highlights
// when there are any.
func (e ReportEnvelope) Document() string {
	if strings.TrimSpace(e.Highlights) == "" {
		return e.Markdown
	}
	return strings.TrimRight(e.Markdown, "\n") + "\n\n" + e.Highlights + "\n"
}

func LoadEnvelope(path string) (ReportEnvelope, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return ReportEnvelope{}, err
	}
	var env ReportEnvelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return ReportEnvelope{}, fmt.Errorf("decode envelope %s: %w", path, err)
	}
	return env, nil
}

func SaveEnvelope(path string, env ReportEnvelope) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	blob, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
