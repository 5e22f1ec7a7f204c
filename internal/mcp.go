package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// MCPServer wraps the MCP server and application dependencies
type MCPServer struct {
	app       *App
	mcpServer *server.MCPServer
	logger    zerolog.Logger
}

// NewMCPServer creates a new MCP server instance
func NewMCPServer(app *App, version string) *MCPServer {
	mcpServer := server.NewMCPServer(
		"ytdash",
		version,
		server.WithToolCapabilities(true),
	)

	s := &MCPServer{
		app:       app,
		mcpServer: mcpServer,
		logger:    componentLogger(app.Logger(), ComponentMCP),
	}
	s.registerTools()
	return s
}

func (s *MCPServer) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List the saved YouTube channel sessions with their subscriber counts, number of fetched videos and when they were saved."),
	), s.handleListSessions)

	s.mcpServer.AddTool(mcp.NewTool("channel_stats",
		mcp.WithDescription("Engagement statistics of a saved channel: averages, median views, engagement rate, upload cadence, top videos and top keywords. Returned as JSON."),
		mcp.WithString("channel",
			mcp.Description("Channel id, @handle or title of a saved session"),
			mcp.Required(),
		),
		mcp.WithNumber("top",
			mcp.Description("How many top videos and keywords to include (default 10)"),
		),
	), s.handleChannelStats)

	s.mcpServer.AddTool(mcp.NewTool("fetch_channel",
		mcp.WithDescription("Fetch a YouTube channel and its latest uploads from the YouTube Data API and save it as a session. Uses YouTube API quota."),
		mcp.WithString("channel",
			mcp.Description("Channel id (UC...), @handle or channel URL"),
			mcp.Required(),
		),
		mcp.WithNumber("pages",
			mcp.Description("Pages of 50 videos to fetch"),
		),
	), s.handleFetchChannel)

	s.mcpServer.AddTool(mcp.NewTool("chat_with_channel",
		mcp.WithDescription("Ask the configured AI provider a question about a saved channel. The question and answer are added to the channel's chat history."),
		mcp.WithString("channel",
			mcp.Description("Channel id, @handle or title of a saved session"),
			mcp.Required(),
		),
		mcp.WithString("question",
			mcp.Description("The question to ask"),
			mcp.Required(),
		),
	), s.handleChatWithChannel)
}

func (s *MCPServer) handleListSessions(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions := s.app.Sessions(ctx)
	if len(sessions) == 0 {
		return mcp.NewToolResultText("No saved sessions. Use fetch_channel to add one."), nil
	}
	var buf strings.Builder
	for _, sess := range sessions {
		fmt.Fprintf(&buf, "%s", sess.Channel.Title)
		if sess.Channel.Handle != "" {
			fmt.Fprintf(&buf, " (%s)", sess.Channel.Handle)
		}
		fmt.Fprintf(&buf, "\n  ID: %s\n  Subscribers: %s\n  Videos fetched: %d\n  Saved: %s\n",
			sess.ID, FormatCount(sess.Channel.SubscriberCount), len(sess.Videos), sess.SavedAt.Format(time.RFC3339))
	}
	return mcp.NewToolResultText(buf.String()), nil
}

func (s *MCPServer) handleChannelStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := request.RequireString("channel")
	if err != nil {
		return mcp.NewToolResultError("channel parameter is required and must be a string"), nil
	}
	top := request.GetInt("top", 10)

	sess, err := s.app.FindSession(ctx, ref)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("unknown channel", err), nil
	}
	data, err := json.MarshalIndent(struct {
		Channel ChannelInfo  `json:"channel"`
		Stats   ChannelStats `json:"stats"`
	}{sess.Channel, ComputeStats(sess.Videos, top)}, "", "  ")
	if err != nil {
		return mcp.NewToolResultErrorFromErr("encoding stats", err), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *MCPServer) handleFetchChannel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := request.RequireString("channel")
	if err != nil {
		return mcp.NewToolResultError("channel parameter is required and must be a string"), nil
	}
	pages := request.GetInt("pages", 0)

	sess, err := s.app.FetchChannel(ctx, ref, pages)
	if err != nil {
		s.logger.Warn().Err(err).Str("channel", ref).Msg("fetch_channel failed")
		return mcp.NewToolResultErrorFromErr("failed to fetch channel", err), nil
	}
	more := "all uploads loaded"
	if sess.NextPageToken != "" {
		more = "more uploads available"
	}
	return mcp.NewToolResultText(fmt.Sprintf("Saved %s (%s) with %d videos, %s.",
		sess.Channel.Title, sess.ID, len(sess.Videos), more)), nil
}

func (s *MCPServer) handleChatWithChannel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := request.RequireString("channel")
	if err != nil {
		return mcp.NewToolResultError("channel parameter is required and must be a string"), nil
	}
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("question parameter is required and must be a string"), nil
	}

	answer, err := s.app.Chat(ctx, ref, question)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("chat failed", err), nil
	}
	return mcp.NewToolResultText(answer), nil
}

// serveMetrics exposes the metrics registry until ctx is done
func (s *MCPServer) serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.app.Metrics().Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		s.logger.Info().Str("addr", addr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

// Start starts the MCP server using the specified transport
func (s *MCPServer) Start(ctx context.Context, transport string, port int) error {
	if err := s.app.WatchIdentity(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("identity changes from other processes will not be noticed")
	}
	if addr := s.app.Config().MetricsAddr; addr != "" {
		s.serveMetrics(ctx, addr)
	}

	if transport == "http" {
		httpServer := server.NewStreamableHTTPServer(s.mcpServer)
		addr := fmt.Sprintf(":%d", port)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpServer.Shutdown(shutdownCtx)
		}()
		s.logger.Info().Str("addr", addr).Msg("serving MCP over HTTP")
		if err := httpServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	return server.ServeStdio(s.mcpServer)
}

// GetServer returns the underlying MCP server for advanced configuration
func (s *MCPServer) GetServer() *server.MCPServer {
	return s.mcpServer
}
