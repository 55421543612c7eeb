package sessions

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func fixtureSessions() []SessionRecord {
	return []SessionRecord{
		{Title: "Inference at scale", Time: "9:00 AM - 9:40 AM", Track: "AI - Inference", Venue: "Hall A", SpeakerCompanies: []string{"Microsoft", "Dell"}, ExpertOpinion: "Worth it"},
		{Title: "Rack design", Time: "10:00 AM - 10:40 AM", Track: "Data Center", Venue: "Hall B", SpeakerCompanies: []string{"HP"}, AIAnalysis: "Liquid cooling"},
		{Title: "Agents", Time: "9:30 AM - 10:00 AM", Track: "AI - Agents", Venue: "Hall A", SpeakerCompanies: nil, ExpertOpinion: "nan"},
		{Title: "Robots", Time: "1:00 PM - 1:40 PM", Track: "Robotics - Control", Venue: "Hall C", SpeakerCompanies: []string{"Dell"}, ExpertOpinion: "  "},
	}
}

func titles(recs []SessionRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Title)
	}
	return out
}

func TestApplyFiltersSentinelsReturnInputUnchanged(t *testing.T) {
	in := fixtureSessions()
	for _, f := range []Filter{NoFilter(), {}} {
		got := ApplyFilters(in, f)
		if diff := cmp.Diff(in, got, cmpopts.EquateEmpty()); diff != "" {
			t.Fatalf("unexpected diff for %+v (-want +got):\n%s", f, diff)
		}
	}
}

func TestApplyFiltersSingleDimension(t *testing.T) {
	in := fixtureSessions()
	tests := []struct {
		name   string
		filter Filter
		want   func(SessionRecord) bool
	}{
		{"track", Filter{Track: "AI - Inference"}, func(s SessionRecord) bool { return s.Track == "AI - Inference" }},
		{"time prefix", Filter{Time: "9:"}, func(s SessionRecord) bool { return strings.HasPrefix(s.Time, "9:") }},
		{"venue", Filter{Venue: "Hall A"}, func(s SessionRecord) bool { return s.Venue == "Hall A" }},
		{"company", Filter{Company: "Dell"}, func(s SessionRecord) bool {
			for _, c := range s.SpeakerCompanies {
				if c == "Dell" {
					return true
				}
			}
			return false
		}},
		{"expert opinion", Filter{HasExpertOpinion: true}, func(s SessionRecord) bool { return !IsMissing(s.ExpertOpinion) }},
		{"ai analysis", Filter{HasAIAnalysis: true}, func(s SessionRecord) bool { return !IsMissing(s.AIAnalysis) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var want []SessionRecord
			for _, s := range in {
				if tc.want(s) {
					want = append(want, s)
				}
			}
			got := ApplyFilters(in, tc.filter)
			if diff := cmp.Diff(titles(want), titles(got)); diff != "" {
				t.Fatalf("filter %+v (-want +got):\n%s", tc.filter, diff)
			}
		})
	}
}

func TestApplyFiltersCombinesWithAnd(t *testing.T) {
	got := ApplyFilters(fixtureSessions(), Filter{Track: AllTopics, Venue: "Hall A", Company: "Microsoft", Time: AllHours})
	if diff := cmp.Diff([]string{"Inference at scale"}, titles(got)); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	got = ApplyFilters(fixtureSessions(), Filter{Venue: "Hall A", HasExpertOpinion: true, HasAIAnalysis: true})
	if len(got) != 0 {
		t.Fatalf("expected no sessions, got %v", titles(got))
	}
}

func TestPrepareFilterOptionsSortsTimesChronologically(t *testing.T) {
	day := DayGroup{Date: "2025-03-18", Day: "Tuesday", Sessions: []SessionRecord{
		{Title: "b", Time: "10:00 AM - 10:30 AM", Track: "AI", Venue: "B", SpeakerCompanies: []string{"Dell"}},
		{Title: "a", Time: "9:00 AM - 9:30 AM", Track: "AI", Venue: "A", SpeakerCompanies: []string{"Microsoft", "Dell"}},
		{Title: "c", Time: "1:00 PM - 1:30 PM", Track: "HPC", Venue: "A"},
		{Title: "d", Time: "9:00 AM - 10:00 AM", Track: "HPC", Venue: "A"},
	}}
	got, err := PrepareFilterOptions([]DayGroup{day})
	if err != nil {
		t.Fatalf("prepare filter options: %v", err)
	}
	want := []FilterOptionSet{{
		Date:      "2025-03-18",
		Topics:    []string{"AI", "HPC"},
		Times:     []string{"9:00 AM", "10:00 AM", "1:00 PM"},
		Venues:    []string{"A", "B"},
		Companies: []string{"Dell", "Microsoft"},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestPrepareFilterOptionsRejectsBadTime(t *testing.T) {
	day := DayGroup{Date: "2025-03-18", Sessions: []SessionRecord{{Title: "x", Time: "noon-ish"}}}
	if _, err := PrepareFilterOptions([]DayGroup{day}); err == nil {
		t.Fatal("expected error for unparseable start time")
	}
}

func TestFilterRoundTripPreservesOptionSets(t *testing.T) {
	day := DayGroup{Date: "2025-03-18", Sessions: fixtureSessions()}
	direct, err := PrepareFilterOptions([]DayGroup{day})
	if err != nil {
		t.Fatalf("direct: %v", err)
	}
	filtered := DayGroup{Date: day.Date, Sessions: ApplyFilters(day.Sessions, NoFilter())}
	again, err := PrepareFilterOptions([]DayGroup{filtered})
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if diff := cmp.Diff(direct, again); diff != "" {
		t.Fatalf("(-direct +round trip):\n%s", diff)
	}
}
