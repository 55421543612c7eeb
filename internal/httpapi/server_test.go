package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joelkehle/conference-insight/internal/cache"
	"github.com/joelkehle/conference-insight/internal/dashboard"
	"github.com/joelkehle/conference-insight/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	handler    http.Handler
	store      *store.Store
	instanceID int64
}

func mustClock(t *testing.T, v string) time.Time {
	t.Helper()
	c, err := time.Parse("15:04", v)
	if err != nil {
		t.Fatalf("parse clock: %v", err)
	}
	return c
}

func newServerForTest(t *testing.T) testEnv {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(filepath.Join(t.TempDir(), "conference.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	confID, err := st.UpsertConference(ctx, "GTC", "industry")
	if err != nil {
		t.Fatalf("upsert conference: %v", err)
	}
	instID, err := st.UpsertInstance(ctx, store.ConferenceInstance{ConferenceID: confID, ConferenceName: "GTC", Year: 2025})
	if err != nil {
		t.Fatalf("upsert instance: %v", err)
	}
	ann, err := st.UpsertSpeaker(ctx, "Ann Lee", "Microsoft Corporation", "CTO")
	if err != nil {
		t.Fatalf("upsert speaker: %v", err)
	}
	bo, err := st.UpsertSpeaker(ctx, "Bo Chen", "Dell Technologies", "")
	if err != nil {
		t.Fatalf("upsert speaker: %v", err)
	}

	day1 := time.Date(2025, 3, 18, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 19, 0, 0, 0, 0, time.UTC)
	inputs := []store.SessionInput{
		{InstanceID: instID, Title: "Scaling LLMs", SessionCode: "S1", Topic: "AI - LLM", Date: day1,
			StartTime: mustClock(t, "13:00"), EndTime: mustClock(t, "14:00"), Venue: "Hall A",
			ExpertView: "worth watching", SpeakerIDs: []int64{ann, bo}},
		{InstanceID: instID, Title: "Robot Arms", SessionCode: "S2", Topic: "Robotics - Manipulation", Date: day1,
			StartTime: mustClock(t, "09:00"), EndTime: mustClock(t, "10:00"), Venue: "Hall B",
			SpeakerIDs: []int64{bo}},
		{InstanceID: instID, Title: "Vision Models", SessionCode: "S3", Topic: "AI - Vision", Date: day2,
			StartTime: mustClock(t, "10:00"), EndTime: mustClock(t, "11:00"), Venue: "Hall A",
			SpeakerIDs: []int64{ann}},
	}
	for _, in := range inputs {
		if _, err := st.UpsertSession(ctx, in); err != nil {
			t.Fatalf("upsert session: %v", err)
		}
	}

	svc := dashboard.New(st, dashboard.Options{Cache: cache.NewMemory(), CacheTTL: time.Minute}, nil)
	return testEnv{handler: NewServer(svc, st, Options{}), store: st, instanceID: instID}
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %s: %v (%s)", path, err, rr.Body.String())
	}
	return rr, body
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestHealth(t *testing.T) {
	env := newServerForTest(t)
	rr, body := get(t, env.handler, "/v1/health")
	if rr.Code != http.StatusOK || body["ok"] != true {
		t.Fatalf("health: %d %v", rr.Code, body)
	}
}

type downDB struct{}

func (downDB) Ping(context.Context) error { return errors.New("database is locked") }

func TestHealthReportsUnavailableDatabase(t *testing.T) {
	env := newServerForTest(t)
	svc := dashboard.New(env.store, dashboard.Options{}, nil)
	h := NewServer(svc, downDB{}, Options{})
	rr, body := get(t, h, "/v1/health")
	if rr.Code != http.StatusServiceUnavailable || errorCode(body) != codeUnavailable {
		t.Fatalf("expected 503 unavailable, got %d %v", rr.Code, body)
	}
}

func TestListInstancesAndLookup(t *testing.T) {
	env := newServerForTest(t)
	_, body := get(t, env.handler, "/v1/instances")
	list, _ := body["instances"].([]any)
	if len(list) != 1 {
		t.Fatalf("expected one instance, got %v", body)
	}

	rr, body := get(t, env.handler, "/v1/instances/999/days")
	if rr.Code != http.StatusNotFound || errorCode(body) != codeNotFound {
		t.Fatalf("expected 404 for unknown instance, got %d %v", rr.Code, body)
	}
	rr, body = get(t, env.handler, "/v1/instances/abc/days")
	if rr.Code != http.StatusBadRequest || errorCode(body) != codeInvalidArgument {
		t.Fatalf("expected 400 for bad id, got %d %v", rr.Code, body)
	}
}

func TestDaysGroupedAndSorted(t *testing.T) {
	env := newServerForTest(t)
	_, body := get(t, env.handler, "/v1/instances/1/days")
	days, _ := body["days"].([]any)
	if len(days) != 2 {
		t.Fatalf("expected 2 days, got %v", body)
	}
	first := days[0].(map[string]any)
	if first["date"] != "2025-03-18" || first["day"] != "Tuesday" {
		t.Fatalf("unexpected first day: %v", first)
	}
	sessions := first["sessions"].([]any)
	if got := sessions[0].(map[string]any)["time"]; got != "9:00 AM - 10:00 AM" {
		t.Fatalf("expected earliest session first, got %v", got)
	}
	speaker := sessions[1].(map[string]any)["speaker"]
	if speaker != "Ann Lee (CTO | Microsoft Corporation), Bo Chen (Dell Technologies)" {
		t.Fatalf("unexpected speaker string: %v", speaker)
	}
}

func TestSessionsFilters(t *testing.T) {
	env := newServerForTest(t)
	cases := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?date=2025-03-18", 2},
		{"?date=2025-03-18&venue=Hall+A", 1},
		{"?topic=AI+-+LLM&company=Dell+Technologies", 1},
		{"?topic=All+Topics&time=All+Hours&venue=All+Venues&company=All+Companies", 3},
		{"?time=9:00+AM", 1},
		{"?expert_opinion=true", 1},
		{"?ai_analysis=1", 0},
	}
	for _, tc := range cases {
		rr, body := get(t, env.handler, "/v1/instances/1/sessions"+tc.query)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status %d %v", tc.query, rr.Code, body)
		}
		if got := int(body["count"].(float64)); got != tc.want {
			t.Errorf("%s: count = %d, want %d", tc.query, got, tc.want)
		}
		if tc.want == 0 && body["message"] == nil {
			t.Errorf("%s: expected empty-result message", tc.query)
		}
	}
}

func TestSessionsRejectsBadInput(t *testing.T) {
	env := newServerForTest(t)
	rr, body := get(t, env.handler, "/v1/instances/1/sessions?expert_opinion=maybe")
	if rr.Code != http.StatusBadRequest || errorCode(body) != codeInvalidArgument {
		t.Fatalf("expected 400, got %d %v", rr.Code, body)
	}
	rr, body = get(t, env.handler, "/v1/instances/1/sessions?date=2030-01-01")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown date, got %d %v", rr.Code, body)
	}
}

func TestFilterOptions(t *testing.T) {
	env := newServerForTest(t)
	_, body := get(t, env.handler, "/v1/instances/1/filter-options")
	opts := body["options"].([]any)
	first := opts[0].(map[string]any)
	times := first["times"].([]any)
	if len(times) != 2 || times[0] != "9:00 AM" || times[1] != "1:00 PM" {
		t.Fatalf("expected chronological times, got %v", times)
	}
}

func TestTopicsAndHierarchy(t *testing.T) {
	env := newServerForTest(t)
	_, body := get(t, env.handler, "/v1/instances/1/topics")
	topics := body["topics"].([]any)
	top := topics[0].(map[string]any)
	if top["topic"] != "AI" || top["count"].(float64) != 2 {
		t.Fatalf("unexpected topic counts: %v", topics)
	}

	_, body = get(t, env.handler, "/v1/instances/1/topics/hierarchy?aggregate=true")
	nodes := body["nodes"].([]any)
	if len(nodes) != 3 || body["aggregated"] != true {
		t.Fatalf("unexpected hierarchy: %v", body)
	}
}

func TestCompanies(t *testing.T) {
	env := newServerForTest(t)
	_, body := get(t, env.handler, "/v1/instances/1/companies?group=oem&aggregate=true")
	out := body["companies"].(map[string]any)
	records := out["records"].([]any)
	if len(records) != 2 {
		t.Fatalf("expected Dell in two topics, got %v", records)
	}
	if records[0].(map[string]any)["company"] != "Dell" {
		t.Fatalf("unexpected record: %v", records[0])
	}

	rr, body := get(t, env.handler, "/v1/instances/1/companies?group=telco")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown group, got %d %v", rr.Code, body)
	}
}

func TestStatsAndCacheInvalidate(t *testing.T) {
	env := newServerForTest(t)
	_, body := get(t, env.handler, "/v1/instances/1/stats?top=1")
	stats := body["stats"].(map[string]any)
	if stats["sessions"].(float64) != 3 || stats["speakers"].(float64) != 2 {
		t.Fatalf("unexpected stats: %v", stats)
	}
	if tracks := stats["top_tracks"].([]any); len(tracks) != 1 {
		t.Fatalf("expected one top track, got %v", tracks)
	}

	// warm the cache, add a session, and confirm it only shows after invalidation
	get(t, env.handler, "/v1/instances/1/days")
	_, err := env.store.UpsertSession(context.Background(), store.SessionInput{
		InstanceID: env.instanceID, Title: "Late Talk", SessionCode: "S4", Topic: "AI - Agents",
		Date: time.Date(2025, 3, 19, 0, 0, 0, 0, time.UTC), StartTime: mustClock(t, "16:00"), EndTime: mustClock(t, "17:00"),
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	_, body = get(t, env.handler, "/v1/instances/1/sessions")
	if body["count"].(float64) != 3 {
		t.Fatalf("expected cached result, got %v", body["count"])
	}

	req := httptest.NewRequest(http.MethodDelete, "/v1/instances/1/cache", nil)
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("invalidate: %d", rr.Code)
	}
	_, body = get(t, env.handler, "/v1/instances/1/sessions")
	if body["count"].(float64) != 4 {
		t.Fatalf("expected fresh result, got %v", body["count"])
	}
}

func TestUnknownRoute(t *testing.T) {
	env := newServerForTest(t)
	rr, body := get(t, env.handler, "/v2/nothing")
	if rr.Code != http.StatusNotFound || errorCode(body) != codeNotFound {
		t.Fatalf("expected 404 envelope, got %d %v", rr.Code, body)
	}
}
