package sessions

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
)

func active(value, sentinel string) bool {
	return value != "" && value != sentinel
}

// ApplyFilters returns the sessions that satisfy every active dimension of f,
// in input order.
func ApplyFilters(sessions []SessionRecord, f Filter) []SessionRecord {
	out := make([]SessionRecord, 0, len(sessions))
	for _, s := range sessions {
		if f.Matches(s) {
			out = append(out, s)
		}
	}
	return out
}

// Matches reports whether s satisfies every active dimension of f.
func (f Filter) Matches(s SessionRecord) bool {
	if active(f.Track, AllTopics) && s.Track != f.Track {
		return false
	}
	if active(f.Time, AllHours) && !strings.HasPrefix(s.Time, f.Time) {
		return false
	}
	if active(f.Venue, AllVenues) && s.Venue != f.Venue {
		return false
	}
	if active(f.Company, AllCompanies) && !slices.Contains(s.SpeakerCompanies, f.Company) {
		return false
	}
	if f.HasExpertOpinion && IsMissing(s.ExpertOpinion) {
		return false
	}
	if f.HasAIAnalysis && IsMissing(s.AIAnalysis) {
		return false
	}
	return true
}

// PrepareFilterOptions derives the distinct topics, start times, venues and
// companies seen on each day. Start times sort chronologically; a start time
// that does not parse as a 12-hour clock is an error.
func PrepareFilterOptions(days []DayGroup) ([]FilterOptionSet, error) {
	out := make([]FilterOptionSet, 0, len(days))
	for _, day := range days {
		opts, err := filterOptionsForDay(day)
		if err != nil {
			return nil, err
		}
		out = append(out, opts)
	}
	return out, nil
}

func filterOptionsForDay(day DayGroup) (FilterOptionSet, error) {
	topics := map[string]struct{}{}
	venues := map[string]struct{}{}
	companies := map[string]struct{}{}
	clocks := map[string]time.Time{}

	for _, s := range day.Sessions {
		topics[s.Track] = struct{}{}
		venues[s.Venue] = struct{}{}
		for _, c := range s.SpeakerCompanies {
			companies[c] = struct{}{}
		}
		start := s.StartTime()
		if _, seen := clocks[start]; seen {
			continue
		}
		clock, err := time.Parse(ClockLayout, strings.TrimSpace(start))
		if err != nil {
			return FilterOptionSet{}, fmt.Errorf("day %s: session %q has unparseable start time %q: %w", day.Date, s.Title, start, err)
		}
		clocks[start] = clock
	}

	times := make([]string, 0, len(clocks))
	for t := range clocks {
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool {
		ci, cj := clocks[times[i]], clocks[times[j]]
		if ci.Equal(cj) {
			return times[i] < times[j]
		}
		return ci.Before(cj)
	})

	return FilterOptionSet{
		Date:      day.Date,
		Topics:    sortedKeys(topics),
		Times:     times,
		Venues:    sortedKeys(venues),
		Companies: sortedKeys(companies),
	}, nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
