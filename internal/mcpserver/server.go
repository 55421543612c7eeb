// Package mcpserver exposes the dashboard queries as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joelkehle/conference-insight/internal/dashboard"
	"github.com/joelkehle/conference-insight/internal/logger"
	"github.com/joelkehle/conference-insight/internal/sessions"
)

const serverName = "conference-insight"

type Server struct {
	svc             *dashboard.Service
	defaultInstance int64
	log             *logger.Logger
	mcp             *server.MCPServer
}

// New registers the tools. defaultInstance is used when a call omits
// instance_id; zero means callers must always pass it.
func New(svc *dashboard.Service, defaultInstance int64, version string, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{svc: svc, defaultInstance: defaultInstance, log: log}
	s.mcp = server.NewMCPServer(serverName, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.mcp.AddTool(mcp.NewTool("list_instances",
		mcp.WithDescription("List the conference instances (conference and year) available for analysis."),
	), s.listInstances)

	s.mcp.AddTool(mcp.NewTool("list_days",
		mcp.WithDescription("List the conference days with their weekday and number of sessions."),
		instanceParam(),
	), s.listDays)

	s.mcp.AddTool(mcp.NewTool("filter_sessions",
		mcp.WithDescription("Return the sessions matching every given filter. Omitted filters match everything."),
		instanceParam(),
		mcp.WithString("date", mcp.Description("Day in YYYY-MM-DD form; all days when omitted.")),
		mcp.WithString("topic", mcp.Description("Exact track, e.g. \"AI - LLM\".")),
		mcp.WithString("time", mcp.Description("Start time, e.g. \"9:00 AM\".")),
		mcp.WithString("venue", mcp.Description("Venue name.")),
		mcp.WithString("company", mcp.Description("Speaker affiliation as stored.")),
		mcp.WithBoolean("expert_opinion", mcp.Description("Only sessions with an expert opinion.")),
		mcp.WithBoolean("ai_analysis", mcp.Description("Only sessions with an AI analysis.")),
		mcp.WithNumber("limit", mcp.Description("Maximum sessions returned; 0 for all.")),
	), s.filterSessions)

	s.mcp.AddTool(mcp.NewTool("topic_counts",
		mcp.WithDescription("Count sessions per high-level topic, or per topic/sub-topic pair when hierarchical."),
		instanceParam(),
		mcp.WithString("date", mcp.Description("Day in YYYY-MM-DD form; all days when omitted.")),
		mcp.WithBoolean("hierarchical", mcp.Description("Break topics down by sub-topic.")),
	), s.topicCounts)

	s.mcp.AddTool(mcp.NewTool("company_topics",
		mcp.WithDescription("Show which topics the speakers of each cloud provider or hardware OEM present on."),
		instanceParam(),
		mcp.WithString("group", mcp.Required(), mcp.Enum(dashboard.GroupCloud, dashboard.GroupOEM),
			mcp.Description("Company group.")),
		mcp.WithString("date", mcp.Description("Day in YYYY-MM-DD form; all days when omitted.")),
	), s.companyTopics)

	s.mcp.AddTool(mcp.NewTool("instance_stats",
		mcp.WithDescription("Session and speaker counts, dates and most frequent tracks."),
		instanceParam(),
		mcp.WithNumber("top", mcp.Description("Number of top tracks, default 10.")),
	), s.instanceStats)

	return s
}

func instanceParam() mcp.ToolOption {
	return mcp.WithNumber("instance_id", mcp.Description("Conference instance id; the configured default when omitted."))
}

// ServeStdio blocks serving JSON-RPC on in/out until ctx is done or in closes.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	s.log.Info("mcp server listening on stdio")
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

func (s *Server) instanceID(req mcp.CallToolRequest) (int64, error) {
	id := int64(req.GetInt("instance_id", int(s.defaultInstance)))
	if id <= 0 {
		return 0, fmt.Errorf("instance_id is required")
	}
	return id, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	blob, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(blob)), nil
}

func (s *Server) failed(tool string, err error) (*mcp.CallToolResult, error) {
	s.log.Warn("mcp tool failed", "tool", tool, "error", err)
	return mcp.NewToolResultError(err.Error()), nil
}

func (s *Server) listInstances(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.svc.Instances(ctx)
	if err != nil {
		return s.failed("list_instances", err)
	}
	return jsonResult(list)
}

type daySummary struct {
	Date     string `json:"date"`
	Day      string `json:"day"`
	Sessions int    `json:"sessions"`
}

func (s *Server) listDays(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.instanceID(req)
	if err != nil {
		return s.failed("list_days", err)
	}
	if _, err := s.svc.Instance(ctx, id); err != nil {
		return s.failed("list_days", err)
	}
	days := s.svc.Days(ctx, id)
	if len(days) == 0 {
		return mcp.NewToolResultText("no sessions found"), nil
	}
	out := make([]daySummary, 0, len(days))
	for _, d := range days {
		out = append(out, daySummary{Date: d.Date, Day: d.Day, Sessions: len(d.Sessions)})
	}
	return jsonResult(out)
}

func (s *Server) filterSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.instanceID(req)
	if err != nil {
		return s.failed("filter_sessions", err)
	}
	f := sessions.Filter{
		Track:            req.GetString("topic", ""),
		Time:             req.GetString("time", ""),
		Venue:            req.GetString("venue", ""),
		Company:          req.GetString("company", ""),
		HasExpertOpinion: req.GetBool("expert_opinion", false),
		HasAIAnalysis:    req.GetBool("ai_analysis", false),
	}
	list, err := s.svc.Sessions(ctx, id, req.GetString("date", ""), f)
	if err != nil {
		return s.failed("filter_sessions", err)
	}
	if len(list) == 0 {
		return mcp.NewToolResultText("no sessions match the selected filters"), nil
	}
	if limit := req.GetInt("limit", 0); limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return jsonResult(list)
}

func (s *Server) topicCounts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.instanceID(req)
	if err != nil {
		return s.failed("topic_counts", err)
	}
	date := req.GetString("date", "")
	if req.GetBool("hierarchical", false) {
		nodes, err := s.svc.TopicHierarchy(ctx, id, date, true)
		if err != nil {
			return s.failed("topic_counts", err)
		}
		return jsonResult(nodes)
	}
	counts, err := s.svc.TopicCounts(ctx, id, date)
	if err != nil {
		return s.failed("topic_counts", err)
	}
	return jsonResult(counts)
}

func (s *Server) companyTopics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.instanceID(req)
	if err != nil {
		return s.failed("company_topics", err)
	}
	out, err := s.svc.CompanyTopics(ctx, id, req.GetString("group", ""), req.GetString("date", ""), true)
	if err != nil {
		return s.failed("company_topics", err)
	}
	return jsonResult(out)
}

func (s *Server) instanceStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.instanceID(req)
	if err != nil {
		return s.failed("instance_stats", err)
	}
	stats, err := s.svc.Stats(ctx, id, req.GetInt("top", 10))
	if err != nil {
		return s.failed("instance_stats", err)
	}
	return jsonResult(stats)
}
