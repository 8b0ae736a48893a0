package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"limstreat/internal/models"
	"limstreat/internal/service"
)

// MCPServer exposes read-only bookmark, album and stats tools.
type MCPServer struct {
	svc *service.Service
}

func NewMCPServer(svc *service.Service) *MCPServer {
	return &MCPServer{svc: svc}
}

func (s *MCPServer) listBookmarksHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filterArg := request.GetString("filter", string(models.FilterAll))
	filter := models.ParseFilter(filterArg)
	if string(filter) != filterArg {
		return mcp.NewToolResultError(fmt.Sprintf("unknown filter %q (use all, recommended or not_recommended)", filterArg)), nil
	}
	query := request.GetString("query", "")

	bookmarks, err := s.svc.Bookmarks(ctx, filter, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("database error: %v", err)), nil
	}
	if len(bookmarks) == 0 {
		return mcp.NewToolResultText("No bookmarks found."), nil
	}

	lines := make([]string, 0, len(bookmarks))
	for _, b := range bookmarks {
		line := fmt.Sprintf("- %s | %s | %s | %s", b.Name, b.Address, b.Category.Label(), models.Stars(b.Rating))
		if b.IsRecommended {
			line += " | 추천"
		}
		if b.HasMemo() {
			line += " | memo: " + strings.ReplaceAll(*b.Memo, "\n", " ")
		}
		lines = append(lines, line)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Found %d bookmarks:\n%s", len(bookmarks), strings.Join(lines, "\n"))), nil
}

func (s *MCPServer) getAlbumHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := request.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError("date is required"), nil
	}
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid date: %v", err)), nil
	}

	album, err := s.svc.Album(ctx, date, 0)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("database error: %v", err)), nil
	}
	if len(album.Photos) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No photos on %s.", date)), nil
	}

	lines := make([]string, 0, len(album.Photos))
	for i, p := range album.Photos {
		name := p.StoreName
		if name == "" {
			name = "(no store)"
		}
		lines = append(lines, fmt.Sprintf("%d. %s [%s]", i+1, name, p.ID))
	}
	return mcp.NewToolResultText(fmt.Sprintf("Found %d photos on %s:\n%s", len(album.Photos), date, strings.Join(lines, "\n"))), nil
}

func (s *MCPServer) categoryStatsHandler(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.svc.CategoryStats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("database error: %v", err)), nil
	}

	lines := make([]string, 0, len(stats))
	for _, st := range stats {
		lines = append(lines, fmt.Sprintf("%s: %d", st.Label, st.Count))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func readOnly() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	}
}

// NewServer registers the tools on a stateless streamable HTTP server.
func (s *MCPServer) NewServer(version string) *server.StreamableHTTPServer {
	mcpServer := server.NewMCPServer("Limstreat", version)

	listBookmarks := mcp.NewTool("list_bookmarks", append([]mcp.ToolOption{
		mcp.WithDescription("List bookmarked restaurants, most recent first."),
		mcp.WithString("filter", mcp.Description("all, recommended or not_recommended"), mcp.Enum("all", "recommended", "not_recommended")),
		mcp.WithString("query", mcp.Description("Case-insensitive substring matched against name or address")),
	}, readOnly()...)...)

	getAlbum := mcp.NewTool("get_album", append([]mcp.ToolOption{
		mcp.WithDescription("List the album photos of one day in upload order."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Day in YYYY-MM-DD form, e.g. 2024-05-01")),
	}, readOnly()...)...)

	categoryStats := mcp.NewTool("category_stats", append([]mcp.ToolOption{
		mcp.WithDescription("Count bookmarks per category, including uncategorized ones."),
	}, readOnly()...)...)

	mcpServer.AddTool(listBookmarks, s.listBookmarksHandler)
	mcpServer.AddTool(getAlbum, s.getAlbumHandler)
	mcpServer.AddTool(categoryStats, s.categoryStatsHandler)

	return server.NewStreamableHTTPServer(mcpServer, server.WithStateLess(true))
}
