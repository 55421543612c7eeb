package insights

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joelkehle/conference-insight/internal/sessions"
)

const (
	unknownTitle       = "未知标题"
	unknownSessionType = "未知会话类型"
	unknownComposer    = "未知撰稿人"
	noSpeakers         = "无"
	listSeparator      = "、"
)

// Columns names the sheet columns the daily report reads.
type Columns struct {
	Title       string `yaml:"title" json:"title"`
	SessionType string `yaml:"session_type" json:"session_type"`
	Topic       string `yaml:"topic" json:"topic"`
	Facts       string `yaml:"facts" json:"facts"`
	Insights    string `yaml:"insights" json:"insights"`
	Authors     string `yaml:"authors" json:"authors"`
	Speakers    string `yaml:"speakers" json:"speakers"`
}

func DefaultColumns() Columns {
	return Columns{
		Title:       "标题\nTitle",
		SessionType: "Session Type",
		Topic:       "Topic",
		Facts:       "实事描述\nDescription of Facts",
		Insights:    "对公司启示\nInsights for Company",
		Authors:     "撰稿人\nAuthors",
		Speakers:    "Speakers",
	}
}

// MergeFields are the list-valued columns MergeInsights fuses by default.
func (c Columns) MergeFields() []string {
	return []string{c.Facts, c.Insights}
}

// MergedColumn is the column MergeInsights writes for field.
func MergedColumn(field string) string {
	return field + " merged"
}

// Layout controls the daily report's text.
type Layout struct {
	Title           string `yaml:"title" json:"title"`
	InsightsHeading string `yaml:"insights_heading" json:"insights_heading"`
}

func DefaultLayout() Layout {
	return Layout{Title: "每日参会快报", InsightsHeading: "对华为的启示"}
}

// DailyEntry is one session of the daily report, already formatted.
type DailyEntry struct {
	Title       string `json:"title"`
	SessionType string `json:"session_type"`
	Topic       string `json:"topic"`
	Speakers    string `json:"speakers"`
	Facts       string `json:"facts"`
	Insights    string `json:"insights"`
	Composer    string `json:"composer"`
}

// BuildDailyReport extracts one entry per row and renders the digest.
func BuildDailyReport(t *Table, cols Columns, layout Layout) (string, []DailyEntry) {
	entries := ExtractEntries(t, cols)
	return RenderDailyReport(entries, layout), entries
}

// ExtractEntries reads report entries from t. Merged columns win over the
// raw list columns when they hold text.
func ExtractEntries(t *Table, cols Columns) []DailyEntry {
	entries := make([]DailyEntry, 0, len(t.Rows))
	for r := range t.Rows {
		entries = append(entries, DailyEntry{
			Title:       cellOr(t, r, cols.Title, unknownTitle),
			SessionType: cellOr(t, r, cols.SessionType, unknownSessionType),
			Topic:       cellOr(t, r, cols.Topic, ""),
			Speakers:    FormatSpeakers(t.Get(r, cols.Speakers)),
			Facts:       mergedOrList(t, r, cols.Facts),
			Insights:    mergedOrList(t, r, cols.Insights),
			Composer:    FormatComposer(t.Get(r, cols.Authors)),
		})
	}
	return entries
}

// cellOr returns def only when the column itself is absent.
func cellOr(t *Table, row int, col, def string) string {
	if !t.Has(col) {
		return def
	}
	return blankIfMissing(t.Get(row, col))
}

func mergedOrList(t *Table, row int, field string) string {
	if merged := blankIfMissing(t.Get(row, MergedColumn(field))); merged != "" {
		return merged
	}
	raw := blankIfMissing(t.Get(row, field))
	if items, ok := ParseInsightList(raw); ok {
		return strings.Join(items, "\n")
	}
	return raw
}

func blankIfMissing(v string) string {
	if sessions.IsMissing(v) {
		return ""
	}
	return v
}

// RenderDailyReport writes the Markdown digest for entries.
func RenderDailyReport(entries []DailyEntry, layout Layout) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", layout.Title)
	for _, e := range entries {
		if e.Title != "" && e.SessionType != "" {
			fmt.Fprintf(&b, "## 【%s】%s\n\n", e.SessionType, e.Title)
		}
		if e.Topic != "" {
			fmt.Fprintf(&b, "### 主题\n%s\n\n", e.Topic)
		}
		if e.Speakers != noSpeakers && e.Speakers != "" {
			fmt.Fprintf(&b, "### 演讲人或相关公司\n%s\n\n", e.Speakers)
		}
		if e.Facts != "" {
			fmt.Fprintf(&b, "### 实事描述\n%s\n\n", e.Facts)
		}
		if e.Insights != "" {
			fmt.Fprintf(&b, "### %s\n%s\n\n", layout.InsightsHeading, e.Insights)
		}
		if e.Composer != unknownComposer && e.Composer != "" {
			fmt.Fprintf(&b, "撰稿人：%s\n\n", e.Composer)
		}
		b.WriteString("---\n\n")
	}
	return b.String()
}

// FormatComposer renders an authors cell (JSON object or list of
// {name, id}) as "name id" entries joined by "、". Unparseable text is
// returned as is.
func FormatComposer(raw string) string {
	raw = blankIfMissing(raw)
	if raw == "" {
		return unknownComposer
	}
	people, isJSON := decodePeople(raw)
	if !isJSON {
		return raw
	}
	var items []string
	for _, p := range people {
		name, id := jsonText(p["name"]), jsonText(p["id"])
		if name != "" && id != "" {
			items = append(items, name+" "+id)
		}
	}
	if len(items) == 0 {
		return unknownComposer
	}
	return strings.Join(items, listSeparator)
}

// FormatSpeakers renders a speakers cell (JSON object or list of
// {name, position, company}) as "name（position, company）" entries joined
// by "、".
func FormatSpeakers(raw string) string {
	raw = blankIfMissing(raw)
	if raw == "" {
		return noSpeakers
	}
	people, isJSON := decodePeople(raw)
	if !isJSON {
		return raw
	}
	var items []string
	for _, p := range people {
		name := jsonText(p["name"])
		if name == "" {
			continue
		}
		var other []string
		for _, k := range []string{"position", "company"} {
			if v := jsonText(p[k]); v != "" {
				other = append(other, v)
			}
		}
		if len(other) == 0 {
			items = append(items, name)
			continue
		}
		items = append(items, fmt.Sprintf("%s（%s）", name, strings.Join(other, ", ")))
	}
	if len(items) == 0 {
		return noSpeakers
	}
	return strings.Join(items, listSeparator)
}

// decodePeople parses raw as a JSON object or array of objects. isJSON is
// false only when raw is not valid JSON; other JSON shapes yield no people.
func decodePeople(raw string) (people []map[string]any, isJSON bool) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, false
	}
	switch x := v.(type) {
	case map[string]any:
		return []map[string]any{x}, true
	case []any:
		for _, it := range x {
			if m, ok := it.(map[string]any); ok {
				people = append(people, m)
			}
		}
	}
	return people, true
}

func jsonText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		b, _ := json.Marshal(x)
		return string(b)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}
