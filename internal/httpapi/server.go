// Package httpapi serves the conference dashboard queries as JSON over gin.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/joelkehle/conference-insight/internal/dashboard"
	"github.com/joelkehle/conference-insight/internal/logger"
	"github.com/joelkehle/conference-insight/internal/sessions"
	"github.com/joelkehle/conference-insight/internal/store"
)

var tracer = otel.Tracer("github.com/joelkehle/conference-insight/internal/httpapi")

const (
	codeInvalidArgument = "invalid_argument"
	codeNotFound        = "not_found"
	codeInvalidData     = "invalid_data"
	codeUnavailable     = "unavailable"
	codeInternal        = "internal"

	instanceKey = "instance_id"
)

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Log         *logger.Logger
	CORSOrigins []string
	// StatsTop is the default number of top tracks in /stats.
	StatsTop int
}

type Server struct {
	svc      *dashboard.Service
	db       Pinger
	log      *logger.Logger
	statsTop int
}

func NewServer(svc *dashboard.Service, db Pinger, opts Options) http.Handler {
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	if opts.StatsTop <= 0 {
		opts.StatsTop = 10
	}
	s := &Server{svc: svc, db: db, log: opts.Log, statsTop: opts.StatsTop}

	router := gin.New()
	router.Use(gin.Recovery(), s.traceRequests())
	if len(opts.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: opts.CORSOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{"Content-Type", "X-Requested-With"},
			MaxAge:       12 * time.Hour,
		}))
	}

	v1 := router.Group("/v1")
	v1.GET("/health", s.handleHealth)
	v1.GET("/instances", s.handleListInstances)

	inst := v1.Group("/instances/:id", s.requireInstance())
	inst.GET("", s.handleInstance)
	inst.GET("/days", s.handleDays)
	inst.GET("/filter-options", s.handleFilterOptions)
	inst.GET("/sessions", s.handleSessions)
	inst.GET("/topics", s.handleTopics)
	inst.GET("/topics/hierarchy", s.handleTopicHierarchy)
	inst.GET("/companies", s.handleCompanies)
	inst.GET("/stats", s.handleStats)
	inst.DELETE("/cache", s.handleInvalidate)

	router.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, codeNotFound, "no route for "+c.Request.URL.Path)
	})
	return router
}

func writeJSON(c *gin.Context, status int, payload gin.H) {
	c.JSON(status, payload)
}

func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"ok": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// writeServiceError maps dashboard and store errors onto HTTP statuses.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, dashboard.ErrUnknownDate):
		writeError(c, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, dashboard.ErrUnknownGroup):
		writeError(c, http.StatusBadRequest, codeInvalidArgument, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, codeInternal, err.Error())
	}
}

func parseInt(value string, def int) int {
	if strings.TrimSpace(value) == "" {
		return def
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return v
}

// queryBool reads an optional boolean query parameter. Absent means false.
func queryBool(c *gin.Context, name string) (bool, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		writeError(c, http.StatusBadRequest, codeInvalidArgument, name+" must be a boolean")
		return false, false
	}
	return v, true
}

func (s *Server) traceRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+c.FullPath(),
			trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		kv := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", time.Since(started).Milliseconds(),
		}
		if sc := span.SpanContext(); sc.HasTraceID() {
			kv = append(kv, "trace_id", sc.TraceID().String())
		}
		if status >= http.StatusInternalServerError {
			s.log.Warn("request failed", kv...)
			return
		}
		s.log.Debug("request", kv...)
	}
}

// requireInstance parses :id and 404s unknown instances.
func (s *Server) requireInstance() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			writeError(c, http.StatusBadRequest, codeInvalidArgument, "instance id must be a positive integer")
			return
		}
		inst, err := s.svc.Instance(c.Request.Context(), id)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.Set(instanceKey, inst)
		c.Next()
	}
}

func instanceFrom(c *gin.Context) store.ConferenceInstance {
	v, _ := c.Get(instanceKey)
	inst, _ := v.(store.ConferenceInstance)
	return inst
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			writeError(c, http.StatusServiceUnavailable, codeUnavailable, err.Error())
			return
		}
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "status": "ok"})
}

func (s *Server) handleListInstances(c *gin.Context) {
	list, err := s.svc.Instances(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if list == nil {
		list = []store.ConferenceInstance{}
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "instances": list})
}

func (s *Server) handleInstance(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "instance": instanceFrom(c)})
}

func (s *Server) handleDays(c *gin.Context) {
	inst := instanceFrom(c)
	days := s.svc.Days(c.Request.Context(), inst.InstanceID)
	payload := gin.H{"ok": true, "instance_id": inst.InstanceID, "days": days}
	if len(days) == 0 {
		payload["message"] = "no sessions found"
	}
	writeJSON(c, http.StatusOK, payload)
}

func (s *Server) handleFilterOptions(c *gin.Context) {
	inst := instanceFrom(c)
	opts, err := s.svc.FilterOptions(c.Request.Context(), inst.InstanceID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInvalidData, err.Error())
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "options": opts})
}

func (s *Server) handleSessions(c *gin.Context) {
	expert, ok := queryBool(c, "expert_opinion")
	if !ok {
		return
	}
	ai, ok := queryBool(c, "ai_analysis")
	if !ok {
		return
	}
	f := sessions.Filter{
		Track:            c.Query("topic"),
		Time:             c.Query("time"),
		Venue:            c.Query("venue"),
		Company:          c.Query("company"),
		HasExpertOpinion: expert,
		HasAIAnalysis:    ai,
	}
	inst := instanceFrom(c)
	list, err := s.svc.Sessions(c.Request.Context(), inst.InstanceID, c.Query("date"), f)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	payload := gin.H{"ok": true, "count": len(list), "sessions": list}
	if len(list) == 0 {
		payload["message"] = "no sessions match the selected filters"
	}
	writeJSON(c, http.StatusOK, payload)
}

func (s *Server) handleTopics(c *gin.Context) {
	inst := instanceFrom(c)
	counts, err := s.svc.TopicCounts(c.Request.Context(), inst.InstanceID, c.Query("date"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "topics": counts})
}

func (s *Server) handleTopicHierarchy(c *gin.Context) {
	aggregate, ok := queryBool(c, "aggregate")
	if !ok {
		return
	}
	inst := instanceFrom(c)
	nodes, err := s.svc.TopicHierarchy(c.Request.Context(), inst.InstanceID, c.Query("date"), aggregate)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "aggregated": aggregate, "nodes": nodes})
}

func (s *Server) handleCompanies(c *gin.Context) {
	aggregate, ok := queryBool(c, "aggregate")
	if !ok {
		return
	}
	group := strings.ToLower(c.DefaultQuery("group", dashboard.GroupCloud))
	inst := instanceFrom(c)
	out, err := s.svc.CompanyTopics(c.Request.Context(), inst.InstanceID, group, c.Query("date"), aggregate)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "companies": out})
}

func (s *Server) handleStats(c *gin.Context) {
	inst := instanceFrom(c)
	stats, err := s.svc.Stats(c.Request.Context(), inst.InstanceID, parseInt(c.Query("top"), s.statsTop))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "stats": stats})
}

func (s *Server) handleInvalidate(c *gin.Context) {
	inst := instanceFrom(c)
	s.svc.Invalidate(c.Request.Context(), inst.InstanceID)
	writeJSON(c, http.StatusOK, gin.H{"ok": true})
}
