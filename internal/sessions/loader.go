package sessions

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/joelkehle/conference-insight/internal/logger"
	"github.com/joelkehle/conference-insight/internal/store"
)

var tracer = otel.Tracer("github.com/joelkehle/conference-insight/internal/sessions")

// Source is the subset of the store the loader reads from.
type Source interface {
	SessionsByInstance(ctx context.Context, instanceID int64) ([]store.SessionRow, error)
	AffiliationName(ctx context.Context, affiliationID int64) (string, error)
}

// Loader builds day-grouped session records for a conference instance.
type Loader struct {
	src Source
	log *logger.Logger
}

func NewLoader(src Source, log *logger.Logger) *Loader {
	if log == nil {
		log = logger.Nop()
	}
	return &Loader{src: src, log: log}
}

// LoadSessionData is the fail-soft form of Load: store errors and empty
// instances are logged and yield an empty result.
func (l *Loader) LoadSessionData(ctx context.Context, instanceID int64) []DayGroup {
	days, err := l.Load(ctx, instanceID)
	if err != nil {
		l.log.Error("load session data failed", "instance_id", instanceID, "error", err)
		return []DayGroup{}
	}
	if len(days) == 0 {
		l.log.Info("no sessions found", "instance_id", instanceID)
	}
	return days
}

// Load reads every session of the instance and returns them grouped by date
// ascending, each day sorted by start time.
func (l *Loader) Load(ctx context.Context, instanceID int64) ([]DayGroup, error) {
	ctx, span := tracer.Start(ctx, "sessions.Load")
	defer span.End()
	span.SetAttributes(attribute.Int64("instance_id", instanceID))

	rows, err := l.src.SessionsByInstance(ctx, instanceID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load sessions for instance %d: %w", instanceID, err)
	}

	names := map[int64]string{}
	byDate := map[string][]SessionRecord{}
	weekday := map[string]string{}
	for _, row := range rows {
		rec, err := l.buildRecord(ctx, row, names)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		date := row.Date.Format(DateLayout)
		byDate[date] = append(byDate[date], rec)
		weekday[date] = row.Date.Weekday().String()
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	days := make([]DayGroup, 0, len(dates))
	for _, d := range dates {
		recs := byDate[d]
		sort.SliceStable(recs, func(i, j int) bool { return recs[i].StartsAt.Before(recs[j].StartsAt) })
		days = append(days, DayGroup{Date: d, Day: weekday[d], Sessions: recs})
	}
	span.SetAttributes(attribute.Int("session_count", len(rows)), attribute.Int("day_count", len(days)))
	return days, nil
}

func (l *Loader) buildRecord(ctx context.Context, row store.SessionRow, names map[int64]string) (SessionRecord, error) {
	speakers := make([]string, 0, len(row.Speakers))
	var companies []string
	for _, sp := range row.Speakers {
		affiliation := ""
		if sp.AffiliationID != nil {
			id := *sp.AffiliationID
			name, ok := names[id]
			if !ok {
				var err error
				name, err = l.src.AffiliationName(ctx, id)
				if err != nil {
					return SessionRecord{}, fmt.Errorf("session %d speaker %q: %w", row.SessionID, sp.Name, err)
				}
				names[id] = name
			}
			affiliation = orEmpty(name)
		}
		speakers = append(speakers, formatSpeaker(sp.Name, orEmpty(sp.Position), affiliation))
		if affiliation != "" {
			companies = append(companies, affiliation)
		}
	}

	return SessionRecord{
		Time:             row.StartTime.Format(ClockLayout) + TimeRangeSeparator + row.EndTime.Format(ClockLayout),
		Title:            row.Title,
		Speaker:          strings.Join(speakers, ", "),
		Location:         formatLocation(row.Venue, row.Room),
		Venue:            orEmpty(row.Venue),
		SpeakerCompanies: companies,
		Track:            orEmpty(row.Topic),
		FullTopic:        orEmpty(row.Topic),
		Description:      orEmpty(row.Description),
		SessionCode:      orEmpty(row.SessionCode),
		TechnicalLevel:   orEmpty(row.TechnicalLevel),
		Points:           orEmpty(row.Points),
		ExpertOpinion:    orEmpty(row.ExpertView),
		AIAnalysis:       orEmpty(row.AIAnalysis),
		StartsAt:         row.StartTime,
	}, nil
}

func formatSpeaker(name, position, affiliation string) string {
	switch {
	case position != "":
		return fmt.Sprintf("%s (%s | %s)", name, position, affiliation)
	case affiliation != "":
		return fmt.Sprintf("%s (%s)", name, affiliation)
	default:
		return name
	}
}

func formatLocation(venue, room string) string {
	venue, room = orEmpty(venue), orEmpty(room)
	if room == "" {
		return venue
	}
	if venue == "" {
		return room
	}
	return venue + ", " + room
}
