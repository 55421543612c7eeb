// Package store persists conferences, sessions, speakers and affiliations in
// SQLite.
package store

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

type Conference struct {
	ConferenceID int64  `db:"conference_id" json:"conference_id"`
	Name         string `db:"name" json:"name"`
	Type         string `db:"type" json:"type"`
	Description  string `db:"description" json:"description"`
}

type ConferenceInstance struct {
	InstanceID     int64  `db:"instance_id" json:"instance_id"`
	ConferenceID   int64  `db:"conference_id" json:"conference_id"`
	ConferenceName string `db:"conference_name" json:"conference_name"`
	Year           int    `db:"year" json:"year"`
	StartDate      string `db:"start_date" json:"start_date,omitempty"`
	EndDate        string `db:"end_date" json:"end_date,omitempty"`
	Location       string `db:"location" json:"location,omitempty"`
	Website        string `db:"website" json:"website,omitempty"`
}

type Affiliation struct {
	AffiliationID int64    `json:"affiliation_id"`
	Name          string   `json:"name"`
	Aliases       []string `json:"aliases,omitempty"`
	Type          string   `json:"type,omitempty"`
}

// SpeakerRow is a speaker attached to a session, in presentation order.
type SpeakerRow struct {
	SpeakerID     int64
	Name          string
	Position      string
	AffiliationID *int64
}

// SessionRow is a stored session with its speakers.
type SessionRow struct {
	SessionID         int64
	InstanceID        int64
	Title             string
	SessionCode       string
	Topic             string
	ViewingExperience string
	SessionType       string
	Points            string
	Date              time.Time
	StartTime         time.Time
	EndTime           time.Time
	Venue             string
	Room              string
	Description       string
	TechnicalLevel    string
	ExpertView        string
	AIAnalysis        string
	Speakers          []SpeakerRow
}

// SessionInput is the write shape for UpsertSession. Start and end carry
// the clock only; Date carries the calendar day.
type SessionInput struct {
	InstanceID        int64
	Title             string
	SessionCode       string
	Topic             string
	ViewingExperience string
	SessionType       string
	Points            string
	Date              time.Time
	StartTime         time.Time
	EndTime           time.Time
	Venue             string
	Room              string
	Description       string
	TechnicalLevel    string
	ExpertView        string
	AIAnalysis        string
	SpeakerIDs        []int64
}

type TrackCount struct {
	Topic string `db:"topic" json:"topic"`
	Count int    `db:"session_count" json:"count"`
}
