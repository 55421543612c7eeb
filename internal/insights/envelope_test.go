package insights

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeSaveLoadRebuild(t *testing.T) {
	entries := []DailyEntry{{Title: "Keynote", SessionType: "Talk", Topic: "AI", Speakers: noSpeakers, Composer: unknownComposer}}
	layout := Layout{Title: "Daily", InsightsHeading: "Takeaways"}
	env := NewEnvelope("day1.csv", layout, entries, RenderDailyReport(entries, layout))
	env.Highlights = "# 每日精选内容"
	_, err := uuid.Parse(env.ReportID)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "reports", env.ReportID+".json")
	require.NoError(t, SaveEnvelope(path, env))

	loaded, err := LoadEnvelope(path)
	require.NoError(t, err)
	assert.Equal(t, env.ReportID, loaded.ReportID)
	assert.True(t, env.CreatedAt.Equal(loaded.CreatedAt))

	loaded.Markdown = "stale"
	rebuilt, err := RebuildFromEnvelope(loaded)
	require.NoError(t, err)
	assert.Equal(t, env.Markdown, rebuilt.Markdown)
	assert.Equal(t, "# 每日精选内容", rebuilt.Highlights)
}

func TestRebuildFromEnvelopeFillsLayoutDefaults(t *testing.T) {
	rebuilt, err := RebuildFromEnvelope(ReportEnvelope{ReportID: "r1", Entries: []DailyEntry{{Insights: "x"}}})
	require.NoError(t, err)
	assert.Contains(t, rebuilt.Markdown, "# 每日参会快报")
	assert.Contains(t, rebuilt.Markdown, "### 对华为的启示\nx")
}

func TestRebuildFromEnvelopeValidates(t *testing.T) {
	_, err := RebuildFromEnvelope(ReportEnvelope{})
	assert.Error(t, err)
	_, err = RebuildFromEnvelope(ReportEnvelope{ReportID: "r1"})
	assert.Error(t, err)
}

func TestEnvelopeDocument(t *testing.T) {
	env := ReportEnvelope{Markdown: "# 每日参会快报\n\n---\n\n"}
	assert.Equal(t, env.Markdown, env.Document())
	env.Highlights = "# 每日精选内容\n1. x"
	assert.Equal(t, "# 每日参会快报\n\n---\n\n# 每日精选内容\n1. x\n", env.Document())
}
