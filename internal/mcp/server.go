package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/shamescroll/internal/models"
	"github.com/joescharf/shamescroll/internal/output"
	"github.com/joescharf/shamescroll/internal/report"
)

// timeNow is replaced in tests.
var timeNow = time.Now

// Daemon is the part of the daemon API the tools use.
type Daemon interface {
	Status(ctx context.Context) (models.TrackingStatus, error)
	FocusState(ctx context.Context) (models.FocusState, error)
	StartFocus(ctx context.Context, mission string) (models.FocusState, error)
	StopFocus(ctx context.Context) (models.FocusState, error)
	Streak(ctx context.Context) (models.StreakData, error)
	Report(ctx context.Context, days int) (report.Report, error)
}

// Server exposes a running daemon as MCP tools.
type Server struct {
	daemon  Daemon
	version string
}

// NewServer creates the MCP server wrapper.
func NewServer(d Daemon, version string) *Server {
	if version == "" {
		version = "dev"
	}
	return &Server{daemon: d, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("shamescroll", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.statusTool())
	srv.AddTool(s.startFocusTool())
	srv.AddTool(s.stopFocusTool())
	srv.AddTool(s.streakTool())
	srv.AddTool(s.reportTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// shamescroll_status
func (s *Server) statusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("shamescroll_status",
		mcp.WithDescription("Show what is being timed right now and the focus session state. Returns JSON with tracking (host, elapsedSeconds, warningLevel) and focus (isActive, mission, remaining)."),
	)
	return tool, s.handleStatus
}

func (s *Server) handleStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.daemon.Status(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get status: %v", err)), nil
	}
	focus, err := s.daemon.FocusState(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get focus state: %v", err)), nil
	}

	type focusOut struct {
		IsActive  bool   `json:"isActive"`
		Mission   string `json:"mission,omitempty"`
		Remaining string `json:"remaining,omitempty"`
	}
	out := struct {
		Tracking models.TrackingStatus `json:"tracking"`
		Focus    focusOut              `json:"focus"`
	}{Tracking: status}
	out.Focus = focusOut{IsActive: focus.IsActive, Mission: focus.Mission}
	if focus.IsActive {
		out.Focus.Remaining = output.FormatCountdown(focus.Remaining(timeNow()))
	}
	return jsonResult(out)
}

// shamescroll_start_focus
func (s *Server) startFocusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("shamescroll_start_focus",
		mcp.WithDescription("Start a focus session. Tracked sites are blocked until the session ends. Starting while a session is active keeps the current one."),
		mcp.WithString("mission", mcp.Required(), mcp.Description("What the session is for")),
	)
	return tool, s.handleStartFocus
}

func (s *Server) handleStartFocus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mission, err := request.RequireString("mission")
	if err != nil || strings.TrimSpace(mission) == "" {
		return mcp.NewToolResultError("missing required parameter: mission"), nil
	}
	f, err := s.daemon.StartFocus(ctx, strings.TrimSpace(mission))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start focus: %v", err)), nil
	}
	return jsonResult(f)
}

// shamescroll_stop_focus
func (s *Server) stopFocusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("shamescroll_stop_focus",
		mcp.WithDescription("End the active focus session early. Nothing is recorded for a session ended early."),
	)
	return tool, s.handleStopFocus
}

func (s *Server) handleStopFocus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f, err := s.daemon.StopFocus(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to stop focus: %v", err)), nil
	}
	return jsonResult(f)
}

// shamescroll_streak
func (s *Server) streakTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("shamescroll_streak",
		mcp.WithDescription("Get the focus streak: consecutive days with at least one completed session."),
	)
	return tool, s.handleStreak
}

func (s *Server) handleStreak(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sd, err := s.daemon.Streak(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get streak: %v", err)), nil
	}
	return jsonResult(sd)
}

// shamescroll_report
func (s *Server) reportTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("shamescroll_report",
		mcp.WithDescription("Summarize scroll time, focus sessions and completed missions over recent days."),
		mcp.WithNumber("days", mcp.Description("Number of days ending today (default 7)")),
	)
	return tool, s.handleReport
}

func (s *Server) handleReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	days := request.GetInt("days", report.DefaultDays)
	if days < 1 {
		return mcp.NewToolResultError("days must be at least 1"), nil
	}
	rep, err := s.daemon.Report(ctx, days)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to build report: %v", err)), nil
	}
	return jsonResult(rep)
}
