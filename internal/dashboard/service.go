// Package dashboard answers the dashboard queries (days, filters, topic and
// company breakdowns, stats) over cached session data. Both the HTTP API and
// the MCP tools call it.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/joelkehle/conference-insight/internal/cache"
	"github.com/joelkehle/conference-insight/internal/logger"
	"github.com/joelkehle/conference-insight/internal/sessions"
	"github.com/joelkehle/conference-insight/internal/store"
)

// Company groups accepted by CompanyTopics.
const (
	GroupCloud = "cloud"
	GroupOEM   = "oem"
)

var (
	ErrUnknownGroup = errors.New("unknown company group")
	ErrUnknownDate  = errors.New("no sessions on date")
)

// Store is the subset of store.Store the service reads.
type Store interface {
	sessions.Source
	ListInstances(ctx context.Context) ([]store.ConferenceInstance, error)
	Instance(ctx context.Context, instanceID int64) (store.ConferenceInstance, error)
	CountSessions(ctx context.Context, instanceID int64) (int, error)
	CountSpeakers(ctx context.Context, instanceID int64) (int, error)
	SessionDates(ctx context.Context, instanceID int64) ([]string, error)
	TopTracks(ctx context.Context, instanceID int64, limit int) ([]store.TrackCount, error)
}

type Options struct {
	Cloud sessions.AliasTable
	OEM   sessions.AliasTable
	// Cache may be nil, in which case every call reloads from the store.
	Cache    cache.Cache
	CacheTTL time.Duration
}

type Service struct {
	store    Store
	loader   *sessions.Loader
	matchers map[string]*sessions.CompanyMatcher
	cache    cache.Cache
	ttl      time.Duration
	group    singleflight.Group
	log      *logger.Logger
}

func New(st Store, opts Options, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if opts.Cloud == nil {
		opts.Cloud = sessions.DefaultCloudAliases()
	}
	if opts.OEM == nil {
		opts.OEM = sessions.DefaultOEMAliases()
	}
	return &Service{
		store:  st,
		loader: sessions.NewLoader(st, log),
		matchers: map[string]*sessions.CompanyMatcher{
			GroupCloud: sessions.NewCompanyMatcher(opts.Cloud),
			GroupOEM:   sessions.NewCompanyMatcher(opts.OEM),
		},
		cache: opts.Cache,
		ttl:   opts.CacheTTL,
		log:   log,
	}
}

func (s *Service) Instances(ctx context.Context) ([]store.ConferenceInstance, error) {
	return s.store.ListInstances(ctx)
}

func (s *Service) Instance(ctx context.Context, instanceID int64) (store.ConferenceInstance, error) {
	return s.store.Instance(ctx, instanceID)
}

func cacheKey(instanceID int64) string {
	return "days:" + strconv.FormatInt(instanceID, 10)
}

// Days returns the instance's sessions grouped by date. Loading is fail-soft:
// store errors are logged and yield an empty result, which is never cached.
// Concurrent loads of the same instance share one store read.
func (s *Service) Days(ctx context.Context, instanceID int64) []sessions.DayGroup {
	key := cacheKey(instanceID)
	if days, ok := s.cached(ctx, key); ok {
		return days
	}
	v, _, _ := s.group.Do(key, func() (any, error) {
		// other waiters share this load, so one caller going away must not cancel it
		loadCtx := context.WithoutCancel(ctx)
		days := s.loader.LoadSessionData(loadCtx, instanceID)
		if len(days) > 0 {
			s.remember(loadCtx, key, days)
		}
		return days, nil
	})
	return v.([]sessions.DayGroup)
}

// Invalidate drops the cached days of an instance, e.g. after an import.
func (s *Service) Invalidate(ctx context.Context, instanceID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cacheKey(instanceID)); err != nil {
		s.log.Warn("cache delete failed", "instance_id", instanceID, "error", err)
	}
}

func (s *Service) cached(ctx context.Context, key string) ([]sessions.DayGroup, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn("cache get failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var days []sessions.DayGroup
	if err := json.Unmarshal(raw, &days); err != nil {
		s.log.Warn("cache entry unreadable", "key", key, "error", err)
		return nil, false
	}
	return days, true
}

func (s *Service) remember(ctx context.Context, key string, days []sessions.DayGroup) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(days)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		s.log.Warn("cache set failed", "key", key, "error", err)
	}
}

// scope narrows days to one date; an empty date keeps all of them.
func scope(days []sessions.DayGroup, date string) ([]sessions.DayGroup, error) {
	if date == "" {
		return days, nil
	}
	day, ok := sessions.FindDay(days, date)
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnknownDate, date)
	}
	return []sessions.DayGroup{day}, nil
}

func (s *Service) FilterOptions(ctx context.Context, instanceID int64) ([]sessions.FilterOptionSet, error) {
	return sessions.PrepareFilterOptions(s.Days(ctx, instanceID))
}

// Sessions applies f to the sessions of date (all dates when empty).
func (s *Service) Sessions(ctx context.Context, instanceID int64, date string, f sessions.Filter) ([]sessions.SessionRecord, error) {
	days, err := scope(s.Days(ctx, instanceID), date)
	if err != nil {
		return nil, err
	}
	out := sessions.ApplyFilters(sessions.Flatten(days), f)
	if out == nil {
		out = []sessions.SessionRecord{}
	}
	return out, nil
}

func (s *Service) TopicCounts(ctx context.Context, instanceID int64, date string) ([]sessions.TopicCount, error) {
	days, err := scope(s.Days(ctx, instanceID), date)
	if err != nil {
		return nil, err
	}
	return sessions.SortedTopicCounts(sessions.ExtractTopicData(sessions.Flatten(days))), nil
}

func (s *Service) TopicHierarchy(ctx context.Context, instanceID int64, date string, aggregate bool) ([]sessions.TopicNode, error) {
	days, err := scope(s.Days(ctx, instanceID), date)
	if err != nil {
		return nil, err
	}
	nodes := sessions.ExtractHierarchicalTopicData(sessions.Flatten(days))
	if aggregate {
		nodes = sessions.AggregateHierarchy(nodes)
	}
	if nodes == nil {
		nodes = []sessions.TopicNode{}
	}
	return nodes, nil
}

// CompanyBreakdown is the company/topic view of one group.
type CompanyBreakdown struct {
	Group       string                  `json:"group"`
	Companies   []string                `json:"companies"`
	Records     []sessions.CompanyTopic `json:"records"`
	Ambiguities []sessions.Ambiguity    `json:"ambiguities"`
}

func (s *Service) CompanyTopics(ctx context.Context, instanceID int64, group, date string, aggregate bool) (CompanyBreakdown, error) {
	m, ok := s.matchers[group]
	if !ok {
		return CompanyBreakdown{}, fmt.Errorf("%w %q", ErrUnknownGroup, group)
	}
	days, err := scope(s.Days(ctx, instanceID), date)
	if err != nil {
		return CompanyBreakdown{}, err
	}
	records := m.ExtractCompanyTopicData(days)
	if aggregate {
		records = sessions.AggregateCompanyTopics(records)
	}
	if records == nil {
		records = []sessions.CompanyTopic{}
	}
	amb := m.Ambiguities(days)
	if amb == nil {
		amb = []sessions.Ambiguity{}
	}
	return CompanyBreakdown{Group: group, Companies: m.Canonicals(), Records: records, Ambiguities: amb}, nil
}

type Stats struct {
	Instance  store.ConferenceInstance `json:"instance"`
	Sessions  int                      `json:"sessions"`
	Speakers  int                      `json:"speakers"`
	Dates     []string                 `json:"dates"`
	TopTracks []store.TrackCount       `json:"top_tracks"`
}

// Stats reads aggregate counts straight from the store, bypassing the cache.
func (s *Service) Stats(ctx context.Context, instanceID int64, topN int) (Stats, error) {
	inst, err := s.store.Instance(ctx, instanceID)
	if err != nil {
		return Stats{}, err
	}
	out := Stats{Instance: inst}
	if out.Sessions, err = s.store.CountSessions(ctx, instanceID); err != nil {
		return Stats{}, err
	}
	if out.Speakers, err = s.store.CountSpeakers(ctx, instanceID); err != nil {
		return Stats{}, err
	}
	if out.Dates, err = s.store.SessionDates(ctx, instanceID); err != nil {
		return Stats{}, err
	}
	if out.TopTracks, err = s.store.TopTracks(ctx, instanceID, topN); err != nil {
		return Stats{}, err
	}
	if out.Dates == nil {
		out.Dates = []string{}
	}
	if out.TopTracks == nil {
		out.TopTracks = []store.TrackCount{}
	}
	return out, nil
}
