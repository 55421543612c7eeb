package sessions

import (
	"sort"
	"strings"
)

// SplitTopic splits a compound track on " - " and returns the first two
// segments; deeper segments are dropped. ok is false when the track has no
// separator.
func SplitTopic(track string) (high, sub string, ok bool) {
	parts := strings.Split(track, TopicSeparator)
	if len(parts) > 1 {
		sub, ok = strings.TrimSpace(parts[1]), true
	}
	return strings.TrimSpace(parts[0]), sub, ok
}

// HighLevelTopic returns the trimmed part of track before the first " - ",
// or "" when either the track or that part is missing.
func HighLevelTopic(track string) string {
	if IsMissing(track) {
		return ""
	}
	high, _, _ := SplitTopic(track)
	if IsMissing(high) {
		return ""
	}
	return high
}

// ExtractTopicData counts sessions per high-level topic.
func ExtractTopicData(sessions []SessionRecord) map[string]int {
	counts := map[string]int{}
	for _, s := range sessions {
		high := HighLevelTopic(s.Track)
		if high == "" {
			continue
		}
		counts[high]++
	}
	return counts
}

// ExtractHierarchicalTopicData emits one node per session with its high-level
// and sub topic. Nodes are not aggregated; see AggregateHierarchy.
func ExtractHierarchicalTopicData(sessions []SessionRecord) []TopicNode {
	var out []TopicNode
	for _, s := range sessions {
		high := HighLevelTopic(s.Track)
		if high == "" {
			continue
		}
		_, sub, ok := SplitTopic(s.Track)
		if !ok {
			sub = GeneralSubTopic
		}
		out = append(out, TopicNode{HighLevelTopic: high, SubTopic: sub, Count: 1})
	}
	return out
}

// AggregateHierarchy sums node counts per (high-level, sub) pair, ordered by
// high-level topic then sub topic.
func AggregateHierarchy(nodes []TopicNode) []TopicNode {
	type key struct{ high, sub string }
	sums := map[key]int{}
	for _, n := range nodes {
		sums[key{n.HighLevelTopic, n.SubTopic}] += n.Count
	}
	out := make([]TopicNode, 0, len(sums))
	for k, c := range sums {
		out = append(out, TopicNode{HighLevelTopic: k.high, SubTopic: k.sub, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].HighLevelTopic != out[j].HighLevelTopic {
			return out[i].HighLevelTopic < out[j].HighLevelTopic
		}
		return out[i].SubTopic < out[j].SubTopic
	})
	return out
}

// SortedTopicCounts orders counts descending, ties broken by topic name.
func SortedTopicCounts(counts map[string]int) []TopicCount {
	out := make([]TopicCount, 0, len(counts))
	for t, c := range counts {
		out = append(out, TopicCount{Topic: t, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Topic < out[j].Topic
	})
	return out
}
