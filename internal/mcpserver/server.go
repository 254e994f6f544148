// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes docket tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/docket/internal/docservice"
	"github.com/starford/docket/internal/keyword"
	"github.com/starford/docket/internal/models"
	"github.com/starford/docket/internal/store"
)

const searchLimit = 20

// Server wraps the MCP server with docket tools.
type Server struct {
	mcp *server.MCPServer
	svc *docservice.Service
}

// New creates a new MCP server with all docket tools registered.
func New(svc *docservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"docket",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Find documents. All given filters must match; words are matched as case-insensitive substrings."),
		mcp.WithString("words", mcp.Description("Space-separated words that must all occur in the text")),
		mcp.WithString("title", mcp.Description("Space-separated words that must all occur in the title")),
		mcp.WithString("tags", mcp.Description("Comma-separated tag names or paths (e.g. work/reports); subtrees included")),
		mcp.WithString("from", mcp.Description("Created on or after this date (YYYY-MM-DD)")),
		mcp.WithString("to", mcp.Description("Created on or before this date (YYYY-MM-DD)")),
	), s.searchDocuments)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read the full text of a document by id."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Document id")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("create_document",
		mcp.WithDescription("Create a new document. Read the contract first via the "+
			"get_document_contract tool or the docket://document-format resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Document title")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Plain text body")),
		mcp.WithString("tags", mcp.Description("Comma-separated existing tag names or paths")),
	), s.createDocument)

	s.mcp.AddTool(mcp.NewTool("get_document_contract",
		mcp.WithDescription("Returns the docket document contract. "+
			"Call this before creating documents to ensure correct structure."),
	), s.getDocumentContract)

	s.mcp.AddTool(mcp.NewTool("list_tags",
		mcp.WithDescription("List the tag hierarchy, one slash-separated path per line with its id."),
	), s.listTags)

	s.mcp.AddTool(mcp.NewTool("tag_usage",
		mcp.WithDescription("Count documents tagged with a tag or any of its descendants."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Tag id")),
	), s.tagUsage)

	s.mcp.AddTool(mcp.NewTool("attach_asset",
		mcp.WithDescription("Download an image or PDF (http(s) URL or base64 data URI) and bundle it into a document."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Document id")),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data: URI")),
		mcp.WithString("filename", mcp.Description("Optional file name; derived from the URL when omitted")),
	), s.attachAsset)

	s.mcp.AddResource(
		mcp.NewResource("docket://document-format", "Document Contract",
			mcp.WithResourceDescription("What a docket document holds and how tags and dates are expressed."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDocumentFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c := store.Conditions{
		Words:      keyword.Split(req.GetString("words", "")),
		TitleWords: keyword.Split(req.GetString("title", "")),
		OrderBy:    store.OrderModified,
		Desc:       true,
	}
	if names := splitList(req.GetString("tags", "")); len(names) > 0 {
		ids, unknown := s.svc.ResolveTags(names)
		if len(unknown) > 0 {
			return mcp.NewToolResultError(fmt.Sprintf("unknown tags: %s", strings.Join(unknown, ", "))), nil
		}
		c.Tags = ids
	}
	var err error
	if c.CreatedFrom, err = parseDate(req.GetString("from", "")); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if c.CreatedTo, err = parseDate(req.GetString("to", "")); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	docs, total, err := s.svc.List(ctx, docservice.ListParams{Conditions: c, Limit: searchLimit})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(map[string]any{"documents": docs, "total": total}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %d", id)), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "title: %s\n", doc.Title)
	if len(doc.TagNames) > 0 {
		fmt.Fprintf(&b, "tags: %s\n", strings.Join(doc.TagNames, ", "))
	}
	fmt.Fprintf(&b, "created: %s\n", doc.Created.Format(models.DateLayout))
	if len(doc.Attachments) > 0 {
		fmt.Fprintf(&b, "attachments: %s\n", strings.Join(doc.Attachments, ", "))
	}
	b.WriteString("\n")
	b.WriteString(doc.Content)
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) createDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ids, unknown := s.svc.ResolveTags(splitList(req.GetString("tags", "")))
	if len(unknown) > 0 {
		return mcp.NewToolResultError(fmt.Sprintf("unknown tags: %s", strings.Join(unknown, ", "))), nil
	}

	doc, err := s.svc.Create(ctx, docservice.DocInput{Title: title, Content: content, Tags: ids})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %d", doc.ID)), nil
}

func (s *Server) listTags(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tags := s.svc.Tags(ctx)
	if len(tags) == 0 {
		return mcp.NewToolResultText("no tags defined"), nil
	}
	lines := make([]string, len(tags))
	for i, t := range tags {
		lines[i] = fmt.Sprintf("%d\t%s", t.ID, t.Path)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) tagUsage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.TagUsage(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%d", n)), nil
}

func (s *Server) getDocumentContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DocumentContract), nil
}

func (s *Server) readDocumentFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "docket://document-format",
			MIMEType: "text/markdown",
			Text:     DocumentContract,
		},
	}, nil
}

func requireID(req mcp.CallToolRequest) (int64, error) {
	f, err := req.RequireFloat("id")
	if err != nil {
		return 0, err
	}
	if f < 1 || f != float64(int64(f)) {
		return 0, fmt.Errorf("id must be a positive integer")
	}
	return int64(f), nil
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(models.DateLayout, v, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", v)
	}
	return t, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
