package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/convorag/internal/extract"
)

// MaxResourceSize caps the extracted text served for one pool file.
const MaxResourceSize = 1024 * 1024

// RegisterPoolResources builds the discovery index and exposes each pool
// file as a resource whose content is its extracted text. It returns the
// number of resources registered.
func (s *Server) RegisterPoolResources(ctx context.Context) (int, error) {
	idx := s.orch.Discovery()
	if idx == nil {
		return 0, nil
	}
	if err := idx.Build(ctx); err != nil {
		return 0, fmt.Errorf("failed to build discovery index: %w", err)
	}
	return s.syncPoolResources(), nil
}

// RefreshPoolResources rebuilds the discovery index from the pool and
// brings the resource list in line with it: new files are added and
// resources for removed files are dropped.
func (s *Server) RefreshPoolResources(ctx context.Context) (int, error) {
	idx := s.orch.Discovery()
	if idx == nil {
		return 0, nil
	}
	if err := idx.Rebuild(ctx); err != nil {
		return 0, fmt.Errorf("failed to rebuild discovery index: %w", err)
	}
	return s.syncPoolResources(), nil
}

func (s *Server) syncPoolResources() int {
	records := s.orch.Discovery().Records()

	s.resMu.Lock()
	defer s.resMu.Unlock()

	current := make(map[string]bool, len(records))
	for _, r := range records {
		uri := "file://" + r.Path
		current[uri] = true
		s.mcp.AddResource(&mcp.Resource{
			Name:        r.Filename,
			URI:         uri,
			Description: r.Summary,
			MIMEType:    extractedMimeType(r.Path),
		}, s.makePoolHandler(r.Path))
	}

	var stale []string
	for uri := range s.resources {
		if !current[uri] {
			stale = append(stale, uri)
		}
	}
	if len(stale) > 0 {
		s.mcp.RemoveResources(stale...)
	}
	s.resources = current

	s.logger.Info("pool resources synced",
		slog.Int("count", len(records)),
		slog.Int("removed", len(stale)))
	return len(records)
}

func (s *Server) makePoolHandler(path string) mcp.ResourceHandler {
	return func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return readPoolFile(path)
	}
}

func readPoolFile(path string) (*mcp.ReadResourceResult, error) {
	text := extract.File(path)
	if text == "" {
		return nil, &MCPError{
			Code:    ErrCodeUnsupported,
			Message: fmt.Sprintf("no text extracted: %s", filepath.Base(path)),
		}
	}
	if len(text) > MaxResourceSize {
		text = strings.ToValidUTF8(text[:MaxResourceSize], "")
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      "file://" + path,
			MIMEType: extractedMimeType(path),
			Text:     text,
		}},
	}, nil
}

// extractedMimeType is the MIME type of the text served for path. Binary
// documents are served as plain text.
func extractedMimeType(path string) string {
	switch extract.Detect(path) {
	case extract.PDF, extract.DOCX, extract.XLSX:
		return "text/plain"
	default:
		return MimeTypeForPath(path)
	}
}
