package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("github.com/joelkehle/conference-insight/internal/store")

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04:05"
)

// Store is a SQLite-backed repository for the conference schema. It is safe
// for concurrent use.
type Store struct {
	db *sqlx.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS conference (
	conference_id INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL UNIQUE,
	type          TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS conference_instance (
	instance_id     INTEGER PRIMARY KEY AUTOINCREMENT,
	conference_id   INTEGER NOT NULL REFERENCES conference(conference_id),
	conference_name TEXT NOT NULL,
	year            INTEGER NOT NULL,
	start_date      TEXT NOT NULL DEFAULT '',
	end_date        TEXT NOT NULL DEFAULT '',
	location        TEXT NOT NULL DEFAULT '',
	website         TEXT NOT NULL DEFAULT '',
	UNIQUE (conference_name, year)
);

CREATE TABLE IF NOT EXISTS affiliation (
	affiliation_id INTEGER PRIMARY KEY AUTOINCREMENT,
	name           TEXT NOT NULL,
	aliases        TEXT NOT NULL DEFAULT '[]',
	type           TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_affiliation_name ON affiliation(name);

CREATE TABLE IF NOT EXISTS speaker (
	speaker_id     INTEGER PRIMARY KEY AUTOINCREMENT,
	affiliation_id INTEGER REFERENCES affiliation(affiliation_id),
	name           TEXT NOT NULL,
	position       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_speaker_name ON speaker(name);

CREATE TABLE IF NOT EXISTS session (
	session_id         INTEGER PRIMARY KEY AUTOINCREMENT,
	instance_id        INTEGER NOT NULL REFERENCES conference_instance(instance_id),
	title              TEXT NOT NULL,
	session_code       TEXT NOT NULL DEFAULT '',
	topic              TEXT NOT NULL DEFAULT '',
	viewing_experience TEXT NOT NULL DEFAULT '',
	session_type       TEXT NOT NULL DEFAULT '',
	points             TEXT NOT NULL DEFAULT '',
	date               TEXT NOT NULL,
	start_time         TEXT NOT NULL,
	end_time           TEXT NOT NULL,
	venue              TEXT NOT NULL DEFAULT '',
	room               TEXT NOT NULL DEFAULT '',
	description        TEXT NOT NULL DEFAULT '',
	technical_level    TEXT NOT NULL DEFAULT '',
	expert_view        TEXT NOT NULL DEFAULT '',
	ai_analysis        TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_session_code ON session(session_code);
CREATE INDEX IF NOT EXISTS idx_session_date ON session(date);
CREATE INDEX IF NOT EXISTS idx_session_topic ON session(topic);

CREATE TABLE IF NOT EXISTS session_speaker (
	session_id INTEGER NOT NULL REFERENCES session(session_id) ON DELETE CASCADE,
	speaker_id INTEGER NOT NULL REFERENCES speaker(speaker_id) ON DELETE CASCADE,
	position   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (session_id, speaker_id)
);
`

func Open(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- conferences and instances ---

func (s *Store) UpsertConference(ctx context.Context, name, confType string) (int64, error) {
	return upsertConference(ctx, s.db, name, confType)
}

func upsertConference(ctx context.Context, q sqlx.ExtContext, name, confType string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, errors.New("conference name is required")
	}
	if _, err := q.ExecContext(ctx, `INSERT INTO conference (name, type) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET type = CASE WHEN excluded.type != '' THEN excluded.type ELSE conference.type END`,
		name, confType); err != nil {
		return 0, fmt.Errorf("upsert conference: %w", err)
	}
	var id int64
	if err := sqlx.GetContext(ctx, q, &id, `SELECT conference_id FROM conference WHERE name = ?`, name); err != nil {
		return 0, fmt.Errorf("lookup conference: %w", err)
	}
	return id, nil
}

func (s *Store) UpsertInstance(ctx context.Context, in ConferenceInstance) (int64, error) {
	return upsertInstance(ctx, s.db, in)
}

func upsertInstance(ctx context.Context, q sqlx.ExtContext, in ConferenceInstance) (int64, error) {
	if in.ConferenceID == 0 || strings.TrimSpace(in.ConferenceName) == "" || in.Year == 0 {
		return 0, errors.New("conference_id, conference_name and year are required")
	}
	if _, err := q.ExecContext(ctx, `INSERT INTO conference_instance
		(conference_id, conference_name, year, start_date, end_date, location, website)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conference_name, year) DO UPDATE SET
			start_date = excluded.start_date,
			end_date   = excluded.end_date,
			location   = excluded.location,
			website    = excluded.website`,
		in.ConferenceID, in.ConferenceName, in.Year, in.StartDate, in.EndDate, in.Location, in.Website); err != nil {
		return 0, fmt.Errorf("upsert instance: %w", err)
	}
	var id int64
	if err := sqlx.GetContext(ctx, q, &id, `SELECT instance_id FROM conference_instance WHERE conference_name = ? AND year = ?`,
		in.ConferenceName, in.Year); err != nil {
		return 0, fmt.Errorf("lookup instance: %w", err)
	}
	return id, nil
}

const instanceColumns = `instance_id, conference_id, conference_name, year, start_date, end_date, location, website`

func (s *Store) InstanceByName(ctx context.Context, name string, year int) (ConferenceInstance, error) {
	var out ConferenceInstance
	err := s.db.GetContext(ctx, &out, `SELECT `+instanceColumns+` FROM conference_instance WHERE conference_name = ? AND year = ?`, name, year)
	if errors.Is(err, sql.ErrNoRows) {
		return ConferenceInstance{}, fmt.Errorf("instance %s %d: %w", name, year, ErrNotFound)
	}
	if err != nil {
		return ConferenceInstance{}, fmt.Errorf("lookup instance: %w", err)
	}
	return out, nil
}

func (s *Store) Instance(ctx context.Context, instanceID int64) (ConferenceInstance, error) {
	var out ConferenceInstance
	err := s.db.GetContext(ctx, &out, `SELECT `+instanceColumns+` FROM conference_instance WHERE instance_id = ?`, instanceID)
	if errors.Is(err, sql.ErrNoRows) {
		return ConferenceInstance{}, fmt.Errorf("instance %d: %w", instanceID, ErrNotFound)
	}
	if err != nil {
		return ConferenceInstance{}, fmt.Errorf("lookup instance: %w", err)
	}
	return out, nil
}

func (s *Store) ListInstances(ctx context.Context) ([]ConferenceInstance, error) {
	var out []ConferenceInstance
	if err := s.db.SelectContext(ctx, &out, `SELECT `+instanceColumns+` FROM conference_instance ORDER BY year, conference_name`); err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	return out, nil
}

// --- affiliations ---

var (
	nonWordRe    = regexp.MustCompile(`[^\w\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

var affiliationAbbreviations = map[string]string{
	"MASSACHUSETTS INSTITUTE OF TECHNOLOGY": "MIT",
	"MASS INST OF TECH":                     "MIT",
	"MASS INSTITUTE OF TECHNOLOGY":          "MIT",
}

// CleanAffiliationName upper-cases name, strips punctuation, collapses
// whitespace and applies known abbreviations.
func CleanAffiliationName(name string) string {
	if name == "" {
		return name
	}
	out := strings.ToUpper(name)
	out = nonWordRe.ReplaceAllString(out, "")
	out = strings.TrimSpace(whitespaceRe.ReplaceAllString(out, " "))
	if abbr, ok := affiliationAbbreviations[out]; ok {
		return abbr
	}
	return out
}

type affiliationRow struct {
	AffiliationID int64  `db:"affiliation_id"`
	Name          string `db:"name"`
	Aliases       string `db:"aliases"`
	Type          string `db:"type"`
}

func (r affiliationRow) toAffiliation() Affiliation {
	a := Affiliation{AffiliationID: r.AffiliationID, Name: r.Name, Type: r.Type}
	_ = json.Unmarshal([]byte(r.Aliases), &a.Aliases)
	return a
}

// UpsertAffiliation finds an affiliation by exact name, then by cleaned name
// against names and aliases, and inserts one when neither matches. New rows
// keep the name as given and record the cleaned form as an alias.
func (s *Store) UpsertAffiliation(ctx context.Context, name string) (Affiliation, error) {
	return upsertAffiliation(ctx, s.db, name)
}

func upsertAffiliation(ctx context.Context, q sqlx.ExtContext, name string) (Affiliation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Affiliation{}, errors.New("affiliation name is required")
	}
	var row affiliationRow
	err := sqlx.GetContext(ctx, q, &row, `SELECT affiliation_id, name, aliases, type FROM affiliation WHERE name = ? LIMIT 1`, name)
	if err == nil {
		return row.toAffiliation(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Affiliation{}, fmt.Errorf("lookup affiliation: %w", err)
	}

	cleaned := CleanAffiliationName(name)
	err = sqlx.GetContext(ctx, q, &row, `SELECT affiliation_id, name, aliases, type FROM affiliation
		WHERE name = ? OR EXISTS (SELECT 1 FROM json_each(affiliation.aliases) WHERE json_each.value = ?)
		ORDER BY affiliation_id LIMIT 1`, cleaned, cleaned)
	if err == nil {
		return row.toAffiliation(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Affiliation{}, fmt.Errorf("lookup affiliation alias: %w", err)
	}

	aliases := []string{}
	if cleaned != "" && cleaned != name {
		aliases = append(aliases, cleaned)
	}
	res, err := q.ExecContext(ctx, `INSERT INTO affiliation (name, aliases) VALUES (?, ?)`, name, marshalJSON(aliases))
	if err != nil {
		return Affiliation{}, fmt.Errorf("insert affiliation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Affiliation{}, err
	}
	return Affiliation{AffiliationID: id, Name: name, Aliases: aliases}, nil
}

// AffiliationName resolves an affiliation id to its name.
func (s *Store) AffiliationName(ctx context.Context, affiliationID int64) (string, error) {
	var name string
	err := s.db.GetContext(ctx, &name, `SELECT name FROM affiliation WHERE affiliation_id = ?`, affiliationID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("affiliation %d: %w", affiliationID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("lookup affiliation: %w", err)
	}
	return name, nil
}

// --- speakers ---

// UpsertSpeaker keys speakers by (name, affiliation). An empty affiliation
// leaves the speaker unaffiliated.
func (s *Store) UpsertSpeaker(ctx context.Context, name, affiliation, position string) (int64, error) {
	return upsertSpeaker(ctx, s.db, name, affiliation, position)
}

func upsertSpeaker(ctx context.Context, q sqlx.ExtContext, name, affiliation, position string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, errors.New("speaker name is required")
	}
	var affID sql.NullInt64
	if strings.TrimSpace(affiliation) != "" {
		a, err := upsertAffiliation(ctx, q, affiliation)
		if err != nil {
			return 0, err
		}
		affID = sql.NullInt64{Int64: a.AffiliationID, Valid: true}
	}

	var id int64
	err := sqlx.GetContext(ctx, q, &id, `SELECT speaker_id FROM speaker WHERE name = ? AND affiliation_id IS ? LIMIT 1`, name, affID)
	switch {
	case err == nil:
		if _, err := q.ExecContext(ctx, `UPDATE speaker SET position = ? WHERE speaker_id = ?`, strings.TrimSpace(position), id); err != nil {
			return 0, fmt.Errorf("update speaker: %w", err)
		}
		return id, nil
	case errors.Is(err, sql.ErrNoRows):
	default:
		return 0, fmt.Errorf("lookup speaker: %w", err)
	}

	res, err := q.ExecContext(ctx, `INSERT INTO speaker (name, affiliation_id, position) VALUES (?, ?, ?)`, name, affID, strings.TrimSpace(position))
	if err != nil {
		return 0, fmt.Errorf("insert speaker: %w", err)
	}
	return res.LastInsertId()
}

// --- sessions ---

// UpsertSession keys sessions by (instance, session code, date), or by
// (instance, date, title, start time) when the session has no code. When
// SpeakerIDs is non-empty the speaker links are replaced in the given order.
func (s *Store) UpsertSession(ctx context.Context, in SessionInput) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	id, err := upsertSession(ctx, tx, in)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

func upsertSession(ctx context.Context, q sqlx.ExtContext, in SessionInput) (int64, error) {
	if in.InstanceID == 0 || strings.TrimSpace(in.Title) == "" || in.Date.IsZero() {
		return 0, errors.New("instance_id, title and date are required")
	}
	in.SessionCode = strings.TrimSpace(in.SessionCode)
	date := in.Date.Format(dateLayout)
	args := []any{
		in.Title, in.Topic, in.ViewingExperience, in.SessionType, in.Points,
		in.StartTime.Format(clockLayout), in.EndTime.Format(clockLayout),
		in.Venue, in.Room, in.Description, in.TechnicalLevel, in.ExpertView, in.AIAnalysis,
	}

	var id int64
	var err error
	if in.SessionCode == "" {
		err = sqlx.GetContext(ctx, q, &id, `SELECT session_id FROM session
			WHERE instance_id = ? AND session_code = '' AND date = ? AND title = ? AND start_time = ? LIMIT 1`,
			in.InstanceID, date, in.Title, in.StartTime.Format(clockLayout))
	} else {
		err = sqlx.GetContext(ctx, q, &id, `SELECT session_id FROM session WHERE instance_id = ? AND session_code = ? AND date = ? LIMIT 1`,
			in.InstanceID, in.SessionCode, date)
	}
	switch {
	case err == nil:
		if _, err := q.ExecContext(ctx, `UPDATE session SET
			title = ?, topic = ?, viewing_experience = ?, session_type = ?, points = ?,
			start_time = ?, end_time = ?, venue = ?, room = ?, description = ?,
			technical_level = ?, expert_view = ?, ai_analysis = ?
			WHERE session_id = ?`, append(args, id)...); err != nil {
			return 0, fmt.Errorf("update session: %w", err)
		}
	case errors.Is(err, sql.ErrNoRows):
		res, err := q.ExecContext(ctx, `INSERT INTO session
			(title, topic, viewing_experience, session_type, points, start_time, end_time,
			 venue, room, description, technical_level, expert_view, ai_analysis,
			 instance_id, session_code, date)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			append(args, in.InstanceID, in.SessionCode, date)...)
		if err != nil {
			return 0, fmt.Errorf("insert session: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return 0, err
		}
	default:
		return 0, fmt.Errorf("lookup session: %w", err)
	}

	if len(in.SpeakerIDs) == 0 {
		return id, nil
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM session_speaker WHERE session_id = ?`, id); err != nil {
		return 0, fmt.Errorf("clear speakers: %w", err)
	}
	for pos, speakerID := range in.SpeakerIDs {
		var exists int
		if err := sqlx.GetContext(ctx, q, &exists, `SELECT COUNT(1) FROM speaker WHERE speaker_id = ?`, speakerID); err != nil {
			return 0, fmt.Errorf("lookup speaker: %w", err)
		}
		if exists == 0 {
			return 0, fmt.Errorf("speaker %d: %w", speakerID, ErrNotFound)
		}
		if _, err := q.ExecContext(ctx, `INSERT OR IGNORE INTO session_speaker (session_id, speaker_id, position) VALUES (?, ?, ?)`,
			id, speakerID, pos); err != nil {
			return 0, fmt.Errorf("link speaker: %w", err)
		}
	}
	return id, nil
}

type sessionScan struct {
	SessionID         int64  `db:"session_id"`
	InstanceID        int64  `db:"instance_id"`
	Title             string `db:"title"`
	SessionCode       string `db:"session_code"`
	Topic             string `db:"topic"`
	ViewingExperience string `db:"viewing_experience"`
	SessionType       string `db:"session_type"`
	Points            string `db:"points"`
	Date              string `db:"date"`
	StartTime         string `db:"start_time"`
	EndTime           string `db:"end_time"`
	Venue             string `db:"venue"`
	Room              string `db:"room"`
	Description       string `db:"description"`
	TechnicalLevel    string `db:"technical_level"`
	ExpertView        string `db:"expert_view"`
	AIAnalysis        string `db:"ai_analysis"`
}

type speakerScan struct {
	SessionID     int64         `db:"session_id"`
	SpeakerID     int64         `db:"speaker_id"`
	Name          string        `db:"name"`
	Position      string        `db:"position"`
	AffiliationID sql.NullInt64 `db:"affiliation_id"`
}

// SessionsByInstance returns every session of an instance with its speakers
// in link order. Sessions come back ordered by date, start time and id.
func (s *Store) SessionsByInstance(ctx context.Context, instanceID int64) ([]SessionRow, error) {
	ctx, span := tracer.Start(ctx, "store.SessionsByInstance")
	defer span.End()
	span.SetAttributes(attribute.Int64("instance_id", instanceID))

	var scans []sessionScan
	if err := s.db.SelectContext(ctx, &scans, `SELECT session_id, instance_id, title,
		COALESCE(session_code, '') AS session_code, COALESCE(topic, '') AS topic,
		COALESCE(viewing_experience, '') AS viewing_experience, COALESCE(session_type, '') AS session_type,
		COALESCE(points, '') AS points, date, start_time, end_time,
		COALESCE(venue, '') AS venue, COALESCE(room, '') AS room, COALESCE(description, '') AS description,
		COALESCE(technical_level, '') AS technical_level, COALESCE(expert_view, '') AS expert_view,
		COALESCE(ai_analysis, '') AS ai_analysis
		FROM session WHERE instance_id = ?
		ORDER BY date, start_time, session_id`, instanceID); err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}

	var speakers []speakerScan
	if err := s.db.SelectContext(ctx, &speakers, `SELECT ss.session_id, sp.speaker_id, sp.name,
		COALESCE(sp.position, '') AS position, sp.affiliation_id
		FROM session_speaker ss
		JOIN speaker sp ON sp.speaker_id = ss.speaker_id
		JOIN session s ON s.session_id = ss.session_id
		WHERE s.instance_id = ?
		ORDER BY ss.session_id, ss.position`, instanceID); err != nil {
		return nil, fmt.Errorf("query speakers: %w", err)
	}
	bySession := map[int64][]SpeakerRow{}
	for _, sp := range speakers {
		row := SpeakerRow{SpeakerID: sp.SpeakerID, Name: sp.Name, Position: sp.Position}
		if sp.AffiliationID.Valid {
			id := sp.AffiliationID.Int64
			row.AffiliationID = &id
		}
		bySession[sp.SessionID] = append(bySession[sp.SessionID], row)
	}

	out := make([]SessionRow, 0, len(scans))
	for _, sc := range scans {
		row, err := sc.toRow()
		if err != nil {
			return nil, err
		}
		row.Speakers = bySession[sc.SessionID]
		out = append(out, row)
	}
	span.SetAttributes(attribute.Int("session_count", len(out)))
	return out, nil
}

func (sc sessionScan) toRow() (SessionRow, error) {
	date, err := time.Parse(dateLayout, sc.Date)
	if err != nil {
		return SessionRow{}, fmt.Errorf("session %d date %q: %w", sc.SessionID, sc.Date, err)
	}
	start, err := parseClockOn(date, sc.StartTime)
	if err != nil {
		return SessionRow{}, fmt.Errorf("session %d start_time: %w", sc.SessionID, err)
	}
	end, err := parseClockOn(date, sc.EndTime)
	if err != nil {
		return SessionRow{}, fmt.Errorf("session %d end_time: %w", sc.SessionID, err)
	}
	return SessionRow{
		SessionID:         sc.SessionID,
		InstanceID:        sc.InstanceID,
		Title:             sc.Title,
		SessionCode:       sc.SessionCode,
		Topic:             sc.Topic,
		ViewingExperience: sc.ViewingExperience,
		SessionType:       sc.SessionType,
		Points:            sc.Points,
		Date:              date,
		StartTime:         start,
		EndTime:           end,
		Venue:             sc.Venue,
		Room:              sc.Room,
		Description:       sc.Description,
		TechnicalLevel:    sc.TechnicalLevel,
		ExpertView:        sc.ExpertView,
		AIAnalysis:        sc.AIAnalysis,
	}, nil
}

func parseClockOn(date time.Time, raw string) (time.Time, error) {
	c, err := time.Parse(clockLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), c.Hour(), c.Minute(), c.Second(), 0, time.UTC), nil
}

// --- aggregate queries ---

func (s *Store) SessionDates(ctx context.Context, instanceID int64) ([]string, error) {
	var out []string
	if err := s.db.SelectContext(ctx, &out, `SELECT DISTINCT date FROM session WHERE instance_id = ? ORDER BY date`, instanceID); err != nil {
		return nil, fmt.Errorf("session dates: %w", err)
	}
	return out, nil
}

func (s *Store) SessionTracks(ctx context.Context, instanceID int64) ([]string, error) {
	var out []string
	if err := s.db.SelectContext(ctx, &out, `SELECT DISTINCT topic FROM session WHERE instance_id = ? AND topic != '' ORDER BY topic`, instanceID); err != nil {
		return nil, fmt.Errorf("session tracks: %w", err)
	}
	return out, nil
}

func (s *Store) SessionVenues(ctx context.Context, instanceID int64) ([]string, error) {
	var out []string
	if err := s.db.SelectContext(ctx, &out, `SELECT DISTINCT venue FROM session WHERE instance_id = ? AND venue != '' ORDER BY venue`, instanceID); err != nil {
		return nil, fmt.Errorf("session venues: %w", err)
	}
	return out, nil
}

func (s *Store) SessionCompanies(ctx context.Context, instanceID int64) ([]string, error) {
	var out []string
	if err := s.db.SelectContext(ctx, &out, `SELECT DISTINCT a.name
		FROM affiliation a
		JOIN speaker sp ON sp.affiliation_id = a.affiliation_id
		JOIN session_speaker ss ON ss.speaker_id = sp.speaker_id
		JOIN session s ON s.session_id = ss.session_id
		WHERE s.instance_id = ? AND a.name != ''
		ORDER BY a.name`, instanceID); err != nil {
		return nil, fmt.Errorf("session companies: %w", err)
	}
	return out, nil
}

func (s *Store) CountSessions(ctx context.Context, instanceID int64) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM session WHERE instance_id = ?`, instanceID); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

func (s *Store) CountSpeakers(ctx context.Context, instanceID int64) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(DISTINCT ss.speaker_id)
		FROM session_speaker ss JOIN session s ON s.session_id = ss.session_id
		WHERE s.instance_id = ?`, instanceID); err != nil {
		return 0, fmt.Errorf("count speakers: %w", err)
	}
	return n, nil
}

// TopTracks returns the most frequent raw topics, most sessions first.
func (s *Store) TopTracks(ctx context.Context, instanceID int64, limit int) ([]TrackCount, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []TrackCount
	if err := s.db.SelectContext(ctx, &out, `SELECT topic, COUNT(session_id) AS session_count
		FROM session WHERE instance_id = ?
		GROUP BY topic
		ORDER BY session_count DESC, topic
		LIMIT ?`, instanceID, limit); err != nil {
		return nil, fmt.Errorf("top tracks: %w", err)
	}
	return out, nil
}

func marshalJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}
