package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/Strob0t/TripForge/internal/domain/guide"
)

const guidesURI = "tripforge://guides"

func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			guidesURI,
			"Local Guides",
			mcplib.WithResourceDescription("The local guide corpus used for retrieval"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleGuidesResource,
	)
}

func (s *Server) handleGuidesResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	guides := s.deps.Guides
	if guides == nil {
		guides = []guide.Entry{}
	}
	data, err := json.Marshal(guides)
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
