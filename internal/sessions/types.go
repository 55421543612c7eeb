// Package sessions turns stored conference sessions into day-grouped display
// records and provides the filters and aggregations the dashboard runs over
// them.
package sessions

import (
	"strings"
	"time"
)

// Sentinel values that disable a filter dimension.
const (
	AllTopics    = "All Topics"
	AllHours     = "All Hours"
	AllVenues    = "All Venues"
	AllCompanies = "All Companies"
)

const (
	TopicSeparator     = " - "
	TimeRangeSeparator = " - "
	GeneralSubTopic    = "General"

	// ClockLayout is the 12-hour layout used for session times ("9:00 AM").
	ClockLayout = "3:04 PM"
	DateLayout  = "2006-01-02"
)

// SessionRecord is one talk/panel occurrence shaped for display and filtering.
type SessionRecord struct {
	Time             string   `json:"time"`
	Title            string   `json:"title"`
	Speaker          string   `json:"speaker"`
	Location         string   `json:"location"`
	Venue            string   `json:"venue"`
	SpeakerCompanies []string `json:"speaker_companies"`
	Track            string   `json:"track"`
	FullTopic        string   `json:"full_topic"`
	Description      string   `json:"description"`
	SessionCode      string   `json:"session_code"`
	TechnicalLevel   string   `json:"technical_level"`
	Points           string   `json:"points"`
	ExpertOpinion    string   `json:"expert_opinion,omitempty"`
	AIAnalysis       string   `json:"ai_analysis,omitempty"`

	// StartsAt is the start clock on the session's date; used for ordering.
	StartsAt time.Time `json:"-"`
}

// StartTime returns the start portion of Time ("9:00 AM" of "9:00 AM - 10:30 AM").
func (s SessionRecord) StartTime() string {
	start, _, _ := strings.Cut(s.Time, TimeRangeSeparator)
	return start
}

// DayGroup holds all sessions of one calendar date, sorted by start time.
type DayGroup struct {
	Date     string          `json:"date"`
	Day      string          `json:"day"`
	Sessions []SessionRecord `json:"sessions"`
}

// FilterOptionSet lists the distinct filter values observed on one day.
type FilterOptionSet struct {
	Date      string   `json:"date"`
	Topics    []string `json:"topics"`
	Times     []string `json:"times"`
	Venues    []string `json:"venues"`
	Companies []string `json:"companies"`
}

// Filter selects sessions. Each string field is inactive when empty or equal
// to its sentinel; the booleans are inactive when false.
type Filter struct {
	Track            string `json:"track,omitempty"`
	Time             string `json:"time,omitempty"`
	Venue            string `json:"venue,omitempty"`
	Company          string `json:"company,omitempty"`
	HasExpertOpinion bool   `json:"has_expert_opinion,omitempty"`
	HasAIAnalysis    bool   `json:"has_ai_analysis,omitempty"`
}

// NoFilter returns a Filter with every dimension at its sentinel.
func NoFilter() Filter {
	return Filter{Track: AllTopics, Time: AllHours, Venue: AllVenues, Company: AllCompanies}
}

// CompanyTopic is one (company, topic) observation; Count is 1 per session
// unless the records were aggregated.
type CompanyTopic struct {
	Company   string `json:"company"`
	Topic     string `json:"topic"`
	Count     int    `json:"count"`
	SessionID string `json:"session_id,omitempty"`
}

// TopicNode is one high-level/sub-topic pair for treemap style charts.
type TopicNode struct {
	HighLevelTopic string `json:"high_level_topic"`
	SubTopic       string `json:"sub_topic"`
	Count          int    `json:"count"`
}

type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// Flatten returns every session across the given days, day order preserved.
func Flatten(days []DayGroup) []SessionRecord {
	n := 0
	for _, d := range days {
		n += len(d.Sessions)
	}
	out := make([]SessionRecord, 0, n)
	for _, d := range days {
		out = append(out, d.Sessions...)
	}
	return out
}

// FindDay returns the group with the given date.
func FindDay(days []DayGroup, date string) (DayGroup, bool) {
	for _, d := range days {
		if d.Date == date {
			return d, true
		}
	}
	return DayGroup{}, false
}
