// Package search talks to the web search collaborator and normalizes its
// results into candidate documents.
package search

import (
	"context"

	"github.com/ppiankov/verity/internal/model"
)

// Search depths understood by the provider
const (
	DepthBasic    = "basic"
	DepthAdvanced = "advanced"
)

// Query is one search call
type Query struct {
	Text string

	// IncludeDomains restricts results to these domains; empty means unrestricted
	IncludeDomains []string

	MaxResults int
	Depth      string
}

// Searcher runs queries against a search provider. Returned documents carry
// URL, title, body, date and provider score; tier and domain annotation is
// left to the caller.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]model.CandidateDocument, error)
}
