package sessions

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplitTopic(t *testing.T) {
	tests := []struct {
		in, high, sub string
		ok            bool
	}{
		{"Robotics - Simulation", "Robotics", "Simulation", true},
		{"AI - LLM - Training", "AI", "LLM", true},
		{"AI - ", "AI", "", true},
		{"Networking", "Networking", "", false},
		{"", "", "", false},
	}
	for _, tc := range tests {
		high, sub, ok := SplitTopic(tc.in)
		if high != tc.high || sub != tc.sub || ok != tc.ok {
			t.Errorf("SplitTopic(%q) = (%q, %q, %v), want (%q, %q, %v)", tc.in, high, sub, ok, tc.high, tc.sub, tc.ok)
		}
	}
}

func TestExtractTopicDataCountsHighLevel(t *testing.T) {
	got := ExtractTopicData([]SessionRecord{
		{Track: "Robotics - Simulation"},
		{Track: "Robotics - Control"},
	})
	if diff := cmp.Diff(map[string]int{"Robotics": 2}, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestExtractTopicDataSkipsMissingTracks(t *testing.T) {
	got := ExtractTopicData([]SessionRecord{
		{Track: "n/a"},
		{Track: ""},
		{Track: "nan - Something"},
		{Track: "HPC"},
	})
	if diff := cmp.Diff(map[string]int{"HPC": 1}, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestExtractHierarchicalTopicData(t *testing.T) {
	sessions := []SessionRecord{
		{Track: "AI - Inference"},
		{Track: "AI"},
		{Track: "AI - Inference - Serving"},
		{Track: "None"},
		{Track: "HPC - "},
	}
	nodes := ExtractHierarchicalTopicData(sessions)
	want := []TopicNode{
		{HighLevelTopic: "AI", SubTopic: "Inference", Count: 1},
		{HighLevelTopic: "AI", SubTopic: GeneralSubTopic, Count: 1},
		{HighLevelTopic: "AI", SubTopic: "Inference", Count: 1},
		{HighLevelTopic: "HPC", SubTopic: "", Count: 1},
	}
	if diff := cmp.Diff(want, nodes); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}

	agg := AggregateHierarchy(nodes)
	wantAgg := []TopicNode{
		{HighLevelTopic: "AI", SubTopic: GeneralSubTopic, Count: 1},
		{HighLevelTopic: "AI", SubTopic: "Inference", Count: 2},
		{HighLevelTopic: "HPC", SubTopic: "", Count: 1},
	}
	if diff := cmp.Diff(wantAgg, agg); diff != "" {
		t.Fatalf("aggregate (-want +got):\n%s", diff)
	}
}

func TestSortedTopicCounts(t *testing.T) {
	got := SortedTopicCounts(map[string]int{"HPC": 2, "AI": 5, "Edge": 2})
	want := []TopicCount{{"AI", 5}, {"Edge", 2}, {"HPC", 2}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}
