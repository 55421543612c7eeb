package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// ScheduleDay is one sheet of the schedule converter output.
type ScheduleDay struct {
	Date     string            `json:"date"`
	Day      string            `json:"day"`
	Sessions []ScheduleSession `json:"sessions"`
}

// ScheduleSession mirrors the converter's lower-cased spreadsheet columns.
type ScheduleSession struct {
	Title             Text            `json:"title"`
	SessionCode       Text            `json:"session code"`
	Time              Text            `json:"time"`
	Badges            Text            `json:"badges"`
	TechnicalLevel    Text            `json:"technical level"`
	Topic             Text            `json:"topic"`
	Speakers          json.RawMessage `json:"speakers"`
	Points            Text            `json:"points"`
	Description       Text            `json:"description"`
	StartTime         Text            `json:"start_time"`
	EndTime           Text            `json:"end_time"`
	ExpertInput       Text            `json:"expert input"`
	AIAnalysis        Text            `json:"ai analysis"`
	Venue             Text            `json:"venue"`
	Room              Text            `json:"room"`
	SessionType       Text            `json:"session type"`
	ViewingExperience Text            `json:"viewing experience"`
}

// Text is a spreadsheet cell: strings pass through, numbers are formatted and
// null becomes "".
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(strings.TrimSpace(s))
		return nil
	}
	*t = Text(b)
	return nil
}

// ScheduleSpeaker is one parsed entry of the speakers cell.
type ScheduleSpeaker struct {
	Name     string `json:"name"`
	Position string `json:"position"`
	Company  string `json:"company"`
}

// ParseSpeakers accepts a list of speaker objects, a list of strings, or a
// single string with entries separated by ";" or newlines. String entries are
// read as "Name, Position, Company"; a two-part entry is "Name, Company".
func ParseSpeakers(raw json.RawMessage) ([]ScheduleSpeaker, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var objects []ScheduleSpeaker
	if err := json.Unmarshal(raw, &objects); err == nil {
		out := objects[:0]
		for _, sp := range objects {
			sp.Name = strings.TrimSpace(sp.Name)
			if sp.Name != "" {
				out = append(out, sp)
			}
		}
		return out, nil
	}
	var entries []string
	if err := json.Unmarshal(raw, &entries); err != nil {
		var single string
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, fmt.Errorf("speakers: unsupported shape %s", string(raw))
		}
		entries = strings.FieldsFunc(single, func(r rune) bool { return r == ';' || r == '\n' })
	}
	var out []ScheduleSpeaker
	for _, e := range entries {
		parts := strings.Split(e, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		sp := ScheduleSpeaker{Name: parts[0]}
		switch {
		case len(parts) == 2:
			sp.Company = parts[1]
		case len(parts) >= 3:
			sp.Position = strings.Join(parts[1:len(parts)-1], ", ")
			sp.Company = parts[len(parts)-1]
		}
		if sp.Name != "" {
			out = append(out, sp)
		}
	}
	return out, nil
}

var scheduleClockLayouts = []string{"3:04 PM", "3:04PM", "15:04", "15:04:05"}

func parseScheduleClock(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range scheduleClockLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized clock %q", raw)
}

// ImportResult counts the distinct rows ImportSchedule wrote.
type ImportResult struct {
	Sessions int `json:"sessions"`
	Speakers int `json:"speakers"`
	Skipped  int `json:"skipped"`
}

// ImportSchedule writes converter output for one instance in a single
// transaction. Sessions without a title are skipped; a session whose day or
// clock cannot be parsed aborts the import.
func (s *Store) ImportSchedule(ctx context.Context, instanceID int64, days []ScheduleDay) (ImportResult, error) {
	ctx, span := tracer.Start(ctx, "store.ImportSchedule")
	defer span.End()

	if _, err := s.Instance(ctx, instanceID); err != nil {
		return ImportResult{}, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return ImportResult{}, fmt.Errorf("begin: %w", err)
	}
	res, err := importDays(ctx, tx, instanceID, days)
	if err != nil {
		_ = tx.Rollback()
		span.RecordError(err)
		return ImportResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return ImportResult{}, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

// ImportConference upserts the conference and its instance and writes the
// schedule, all in one transaction. A failed import leaves no instance behind.
// ConferenceID on in is ignored.
func (s *Store) ImportConference(ctx context.Context, confType string, in ConferenceInstance, days []ScheduleDay) (int64, ImportResult, error) {
	ctx, span := tracer.Start(ctx, "store.ImportConference")
	defer span.End()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, ImportResult{}, fmt.Errorf("begin: %w", err)
	}
	fail := func(err error) (int64, ImportResult, error) {
		_ = tx.Rollback()
		span.RecordError(err)
		return 0, ImportResult{}, err
	}
	confID, err := upsertConference(ctx, tx, in.ConferenceName, confType)
	if err != nil {
		return fail(err)
	}
	in.ConferenceID = confID
	in.ConferenceName = strings.TrimSpace(in.ConferenceName)
	instanceID, err := upsertInstance(ctx, tx, in)
	if err != nil {
		return fail(err)
	}
	res, err := importDays(ctx, tx, instanceID, days)
	if err != nil {
		return fail(err)
	}
	if err := tx.Commit(); err != nil {
		return 0, ImportResult{}, fmt.Errorf("commit: %w", err)
	}
	return instanceID, res, nil
}

func importDays(ctx context.Context, q sqlx.ExtContext, instanceID int64, days []ScheduleDay) (ImportResult, error) {
	var res ImportResult
	speakerIDs := map[int64]struct{}{}
	sessionIDs := map[int64]struct{}{}
	for _, day := range days {
		date, err := time.Parse(dateLayout, strings.TrimSpace(day.Date))
		if err != nil {
			return res, fmt.Errorf("day %q: %w", day.Date, err)
		}
		for i, sess := range day.Sessions {
			if strings.TrimSpace(string(sess.Title)) == "" {
				res.Skipped++
				continue
			}
			in, speakers, err := sessionInput(instanceID, date, sess)
			if err != nil {
				return res, fmt.Errorf("day %s session %d: %w", day.Date, i, err)
			}
			for _, sp := range speakers {
				id, err := upsertSpeaker(ctx, q, sp.Name, sp.Company, sp.Position)
				if err != nil {
					return res, fmt.Errorf("day %s session %d: %w", day.Date, i, err)
				}
				in.SpeakerIDs = append(in.SpeakerIDs, id)
				speakerIDs[id] = struct{}{}
			}
			id, err := upsertSession(ctx, q, in)
			if err != nil {
				return res, fmt.Errorf("day %s session %d: %w", day.Date, i, err)
			}
			sessionIDs[id] = struct{}{}
		}
	}
	res.Sessions = len(sessionIDs)
	res.Speakers = len(speakerIDs)
	return res, nil
}

func sessionInput(instanceID int64, date time.Time, sess ScheduleSession) (SessionInput, []ScheduleSpeaker, error) {
	startRaw, endRaw := string(sess.StartTime), string(sess.EndTime)
	if startRaw == "" || endRaw == "" {
		start, end, ok := strings.Cut(string(sess.Time), " - ")
		if !ok {
			return SessionInput{}, nil, fmt.Errorf("time %q has no range", sess.Time)
		}
		startRaw, endRaw = start, end
	}
	start, err := parseScheduleClock(startRaw)
	if err != nil {
		return SessionInput{}, nil, err
	}
	end, err := parseScheduleClock(endRaw)
	if err != nil {
		return SessionInput{}, nil, err
	}
	speakers, err := ParseSpeakers(sess.Speakers)
	if err != nil {
		return SessionInput{}, nil, err
	}
	sessionType := string(sess.SessionType)
	if sessionType == "" {
		sessionType = string(sess.Badges)
	}
	return SessionInput{
		InstanceID:        instanceID,
		Title:             string(sess.Title),
		SessionCode:       string(sess.SessionCode),
		Topic:             string(sess.Topic),
		ViewingExperience: string(sess.ViewingExperience),
		SessionType:       sessionType,
		Points:            string(sess.Points),
		Date:              date,
		StartTime:         start,
		EndTime:           end,
		Venue:             string(sess.Venue),
		Room:              string(sess.Room),
		Description:       string(sess.Description),
		TechnicalLevel:    string(sess.TechnicalLevel),
		ExpertView:        string(sess.ExpertInput),
		AIAnalysis:        string(sess.AIAnalysis),
	}, speakers, nil
}
