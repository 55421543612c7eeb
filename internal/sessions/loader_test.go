package sessions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/joelkehle/conference-insight/internal/logger"
	"github.com/joelkehle/conference-insight/internal/store"
)

type fakeSource struct {
	rows         []store.SessionRow
	affiliations map[int64]string
	err          error
	lookups      int
}

func (f *fakeSource) SessionsByInstance(context.Context, int64) ([]store.SessionRow, error) {
	return f.rows, f.err
}

func (f *fakeSource) AffiliationName(_ context.Context, id int64) (string, error) {
	f.lookups++
	name, ok := f.affiliations[id]
	if !ok {
		return "", store.ErrNotFound
	}
	return name, nil
}

func at(date string, hour, minute int) (time.Time, time.Time) {
	d, _ := time.Parse(DateLayout, date)
	return d, time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, time.UTC)
}

func row(title, date string, hour, minute int, speakers ...store.SpeakerRow) store.SessionRow {
	d, start := at(date, hour, minute)
	return store.SessionRow{Title: title, Date: d, StartTime: start, EndTime: start.Add(40 * time.Minute), Speakers: speakers}
}

func ptr(v int64) *int64 { return &v }

func TestLoadGroupsAndSortsByDateAndTime(t *testing.T) {
	src := &fakeSource{
		affiliations: map[int64]string{1: "Microsoft", 2: "Dell"},
		rows: []store.SessionRow{
			row("afternoon", "2025-03-18", 13, 0),
			row("next day", "2025-03-19", 9, 0),
			row("morning", "2025-03-18", 9, 0,
				store.SpeakerRow{Name: "Ann", Position: "CTO", AffiliationID: ptr(1)},
				store.SpeakerRow{Name: "Bo", AffiliationID: ptr(2)},
				store.SpeakerRow{Name: "Cy", Position: "nan"},
				store.SpeakerRow{Name: "Di", AffiliationID: ptr(1)},
				store.SpeakerRow{Name: "Eve", Position: "Chair"},
			),
		},
	}
	days, err := NewLoader(src, logger.Nop()).Load(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, days, 2)

	assert.Equal(t, "2025-03-18", days[0].Date)
	assert.Equal(t, "Tuesday", days[0].Day)
	assert.Equal(t, "Wednesday", days[1].Day)
	require.Len(t, days[0].Sessions, 2)

	morning := days[0].Sessions[0]
	assert.Equal(t, "morning", morning.Title)
	assert.Equal(t, "9:00 AM - 9:40 AM", morning.Time)
	assert.Equal(t, "Ann (CTO | Microsoft), Bo (Dell), Cy, Di (Microsoft), Eve (Chair | )", morning.Speaker)
	assert.Equal(t, []string{"Microsoft", "Dell", "Microsoft"}, morning.SpeakerCompanies)
	assert.Equal(t, "afternoon", days[0].Sessions[1].Title)
	assert.Equal(t, "1:00 PM - 1:40 PM", days[0].Sessions[1].Time)
	assert.Equal(t, 2, src.lookups, "affiliation names are memoized per load")
}

func TestLoadBlanksMissingFields(t *testing.T) {
	r := row("x", "2025-03-18", 9, 0)
	r.Venue, r.Room = "Hall A", "210"
	r.Description, r.Points, r.ExpertView, r.AIAnalysis = "nan", "N/A", " ", "Solid"
	r.Topic = "null"
	days, err := NewLoader(&fakeSource{rows: []store.SessionRow{r}}, nil).Load(context.Background(), 1)
	require.NoError(t, err)

	got := days[0].Sessions[0]
	assert.Equal(t, "Hall A, 210", got.Location)
	assert.Empty(t, got.Description)
	assert.Empty(t, got.Points)
	assert.Empty(t, got.ExpertOpinion)
	assert.Empty(t, got.Track)
	assert.Equal(t, "Solid", got.AIAnalysis)
}

func TestFormatLocation(t *testing.T) {
	assert.Equal(t, "Hall A", formatLocation("Hall A", ""))
	assert.Equal(t, "Hall A", formatLocation("Hall A", "nan"))
	assert.Equal(t, "210", formatLocation("", "210"))
	assert.Equal(t, "Hall A, 210", formatLocation("Hall A", "210"))
}

func TestLoadSessionDataIsFailSoft(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := logger.FromZap(zap.New(core))

	l := NewLoader(&fakeSource{err: errors.New("disk on fire")}, log)
	days := l.LoadSessionData(context.Background(), 7)
	assert.NotNil(t, days)
	assert.Empty(t, days)
	assert.Equal(t, 1, logs.FilterMessage("load session data failed").Len())

	l = NewLoader(&fakeSource{}, log)
	assert.Empty(t, l.LoadSessionData(context.Background(), 7))
	assert.Equal(t, 1, logs.FilterMessage("no sessions found").Len())
}

func TestLoadFailsOnUnknownAffiliation(t *testing.T) {
	src := &fakeSource{rows: []store.SessionRow{
		row("x", "2025-03-18", 9, 0, store.SpeakerRow{Name: "Ann", AffiliationID: ptr(9)}),
	}}
	_, err := NewLoader(src, nil).Load(context.Background(), 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLoadedDaysRoundTripThroughFilterOptions(t *testing.T) {
	src := &fakeSource{
		affiliations: map[int64]string{1: "HP"},
		rows: []store.SessionRow{
			{Title: "a", Topic: "AI - LLM", Venue: "A"},
			{Title: "b", Topic: "HPC", Venue: "B"},
		},
	}
	for i := range src.rows {
		d, start := at("2025-03-18", 10-i, 0)
		src.rows[i].Date, src.rows[i].StartTime, src.rows[i].EndTime = d, start, start
		src.rows[i].Speakers = []store.SpeakerRow{{Name: "Ann", AffiliationID: ptr(1)}}
	}
	days, err := NewLoader(src, nil).Load(context.Background(), 1)
	require.NoError(t, err)

	direct, err := PrepareFilterOptions(days)
	require.NoError(t, err)
	filtered := []DayGroup{{Date: days[0].Date, Day: days[0].Day, Sessions: ApplyFilters(Flatten(days), NoFilter())}}
	again, err := PrepareFilterOptions(filtered)
	require.NoError(t, err)

	assert.Equal(t, direct[0].Topics, again[0].Topics)
	assert.Equal(t, direct[0].Venues, again[0].Venues)
	assert.Equal(t, direct[0].Companies, again[0].Companies)
	assert.Equal(t, []string{"9:00 AM", "10:00 AM"}, again[0].Times)
}
