package insights

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInsightList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
		ok   bool
	}{
		{`["a", "b"]`, []string{"a", "b"}, true},
		{`['第一点', "it's fine", 'say \'hi\'']`, []string{"第一点", "it's fine", "say 'hi'"}, true},
		{`['line\nbreak', 3, None,]`, []string{"line\nbreak", "3", "None"}, true},
		{`[]`, []string{}, true},
		{`plain text`, nil, false},
		{`['unterminated]`, nil, false},
		{`['a' 'b']`, nil, false},
	}
	for _, tc := range tests {
		got, ok := ParseInsightList(tc.in)
		if ok != tc.ok {
			t.Errorf("ParseInsightList(%q) ok = %v, want %v", tc.in, ok, tc.ok)
			continue
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("ParseInsightList(%q) (-want +got):\n%s", tc.in, diff)
		}
	}
}

func TestPreprocessPrompt(t *testing.T) {
	got := PreprocessPrompt("华为 partners with HUAWEI and huawei cloud", DefaultReplacements())
	assert.Equal(t, "企业 partners with company and company cloud", got)
}

func TestFormatComposer(t *testing.T) {
	cases := map[string]string{
		`[{"name":"张三","id":"z001"},{"name":"李四","id":42},{"name":"no id"}]`: "张三 z001、李四 42",
		`{"name":"王五","id":"w9"}`: "王五 w9",
		`[{"name":"only"}]`:        unknownComposer,
		`not json`:                 "not json",
		``:                         unknownComposer,
		`nan`:                      unknownComposer,
		`None`:                     unknownComposer,
	}
	for in, want := range cases {
		if got := FormatComposer(in); got != want {
			t.Errorf("FormatComposer(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatSpeakers(t *testing.T) {
	cases := map[string]string{
		`[{"name":"Jensen","position":"CEO","company":"NVIDIA"},{"name":"Ann","company":"Dell"},{"name":"Bo"},{"position":"ghost"}]`: "Jensen（CEO, NVIDIA）、Ann（Dell）、Bo",
		`{"name":"Solo","position":"VP"}`: "Solo（VP）",
		`[]`:                              noSpeakers,
		`Jensen Huang, NVIDIA`:            "Jensen Huang, NVIDIA",
		``:                                noSpeakers,
		`N/A`:                             noSpeakers,
	}
	for in, want := range cases {
		if got := FormatSpeakers(in); got != want {
			t.Errorf("FormatSpeakers(%q) = %q, want %q", in, got, want)
		}
	}
}

func reportTable(t *testing.T) *Table {
	t.Helper()
	cols := DefaultColumns()
	csvText := strings.Join([]string{
		`"标题` + "\n" + `Title",Session Type,Topic,"实事描述` + "\n" + `Description of Facts","对公司启示` + "\n" + `Insights for Company","撰稿人` + "\n" + `Authors",Speakers`,
		`Keynote,Talk,AI - Agents,"['fact one', 'fact two']",insight,"[{""name"":""张三"",""id"":""z1""}]","[{""name"":""Jensen"",""company"":""NVIDIA""}]"`,
		`Untyped,,HPC,,,,`,
	}, "\n")
	table, err := ReadTable(strings.NewReader(csvText))
	require.NoError(t, err)
	require.True(t, table.Has(cols.Title))
	return table
}

func TestBuildDailyReport(t *testing.T) {
	table := reportTable(t)
	md, entries := BuildDailyReport(table, DefaultColumns(), DefaultLayout())
	require.Len(t, entries, 2)

	want := "# 每日参会快报\n\n" +
		"## 【Talk】Keynote\n\n" +
		"### 主题\nAI - Agents\n\n" +
		"### 演讲人或相关公司\nJensen（NVIDIA）\n\n" +
		"### 实事描述\nfact one\nfact two\n\n" +
		"### 对华为的启示\ninsight\n\n" +
		"撰稿人：张三 z1\n\n" +
		"---\n\n" +
		"### 主题\nHPC\n\n" +
		"---\n\n"
	if diff := cmp.Diff(want, md); diff != "" {
		t.Fatalf("markdown (-want +got):\n%s", diff)
	}
}

func TestBuildDailyReportPrefersMergedColumns(t *testing.T) {
	table := reportTable(t)
	cols := DefaultColumns()
	table.Set(0, MergedColumn(cols.Facts), "fused facts")
	_, entries := BuildDailyReport(table, cols, DefaultLayout())
	assert.Equal(t, "fused facts", entries[0].Facts)
	assert.Equal(t, "insight", entries[0].Insights)
}

func TestBuildDailyReportTreatsPlaceholdersAsMissing(t *testing.T) {
	table := reportTable(t)
	cols := DefaultColumns()
	table.Set(0, MergedColumn(cols.Facts), "N/A")
	table.Set(1, cols.Title, "none")
	_, entries := BuildDailyReport(table, cols, DefaultLayout())
	assert.Equal(t, "fact one\nfact two", entries[0].Facts)
	assert.Empty(t, entries[1].Title)
}

func TestBuildDailyReportDefaultsForAbsentColumns(t *testing.T) {
	table, err := ReadTable(strings.NewReader("Topic\nAI\n"))
	require.NoError(t, err)
	_, entries := BuildDailyReport(table, DefaultColumns(), DefaultLayout())
	require.Len(t, entries, 1)
	assert.Equal(t, unknownTitle, entries[0].Title)
	assert.Equal(t, unknownSessionType, entries[0].SessionType)
	assert.Equal(t, noSpeakers, entries[0].Speakers)
	assert.Equal(t, unknownComposer, entries[0].Composer)
}
