package insights

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeInsightsFusesMultiItemLists(t *testing.T) {
	table, err := ReadTable(strings.NewReader(strings.Join([]string{
		"Title,Notes",
		`A,"['华为 should watch this', 'Huawei could partner']"`,
		`B,"['only one']"`,
		`C,free text`,
		`D,"[""x"", ""y""]"`,
	}, "\n")))
	require.NoError(t, err)

	c := &queueCaller{outputs: []string{"\"fused A\"", "fused D"}}
	exec, _ := newTestExecutor(c)
	m := NewMerger(exec, DefaultReplacements(), nil)

	stats, err := m.MergeInsights(context.Background(), table, []string{"Notes"})
	require.NoError(t, err)
	assert.Equal(t, []MergeStats{{Field: "Notes", Eligible: 2, Merged: 2}}, stats)

	assert.Equal(t, []string{"Title", "Notes", "Notes merged"}, table.Columns)
	assert.Equal(t, "fused A", table.Get(0, "Notes merged"))
	assert.Equal(t, "", table.Get(1, "Notes merged"))
	assert.Equal(t, "fused D", table.Get(3, "Notes merged"))

	require.Len(t, c.prompts, 2)
	assert.Equal(t, `["企业 should watch this","company could partner"]`, c.prompts[0])
	assert.Equal(t, mergeInsightsPrompt, c.systems[0])
}

func TestMergeInsightsSkipsFailedRows(t *testing.T) {
	table, err := ReadTable(strings.NewReader("Notes\n\"['a','b']\"\n\"['c','d']\"\n"))
	require.NoError(t, err)

	c := &queueCaller{errs: []error{errors.New("status code: 401 unauthorized")}, outputs: []string{"", "cd"}}
	exec, _ := newTestExecutor(c)
	stats, err := NewMerger(exec, nil, nil).MergeInsights(context.Background(), table, []string{"Notes"})
	require.NoError(t, err)
	assert.Equal(t, 1, stats[0].Failed)
	assert.Equal(t, 1, stats[0].Merged)
	assert.Equal(t, "", table.Get(0, "Notes merged"))
	assert.Equal(t, "cd", table.Get(1, "Notes merged"))
}

func TestMergeInsightsRequiresColumns(t *testing.T) {
	table := &Table{Columns: []string{"Title"}}
	exec, _ := newTestExecutor(&queueCaller{})
	_, err := NewMerger(exec, nil, nil).MergeInsights(context.Background(), table, []string{"Notes"})
	assert.ErrorContains(t, err, `"Notes"`)
}

func TestHighlightsUsesDigestPrompt(t *testing.T) {
	c := &queueCaller{outputs: []string{"```markdown\n# 每日精选内容\n```"}}
	exec, _ := newTestExecutor(c)
	out, _, err := NewMerger(exec, nil, nil).Highlights(context.Background(), "# 每日参会快报")
	require.NoError(t, err)
	assert.Equal(t, "# 每日精选内容", out)
	assert.Equal(t, dailyHighlightsPrompt, c.systems[0])
}

func TestTableRoundTripKeepsColumnOrder(t *testing.T) {
	table, err := ReadTable(strings.NewReader("\ufeffb,a\n1,2\n3\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, table.Columns)
	assert.Equal(t, "", table.Get(1, "a"))
	table.Set(1, "c", "new")

	path := filepath.Join(t.TempDir(), "out", "sheet.csv")
	require.NoError(t, WriteTableFile(path, table))
	again, err := ReadTableFile(path)
	require.NoError(t, err)
	assert.Equal(t, table.Columns, again.Columns)
	assert.Equal(t, table.Rows, again.Rows)

	var buf bytes.Buffer
	require.NoError(t, again.Write(&buf))
	assert.Equal(t, "b,a,c\n1,2,\n3,,new\n", buf.String())
}
