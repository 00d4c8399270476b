// Package docdex defines the document-search collaborator used to ground
// agent prompts, and the planning-context resolution rules over it. The
// real index and transport live outside this repo.
package docdex

import "context"

// Segment is one heading-scoped slice of a document.
type Segment struct {
	Heading string `json:"heading"`
	Content string `json:"content"`
}

// Document is a search hit.
type Document struct {
	ID       string    `json:"id"`
	Path     string    `json:"path"`
	Title    string    `json:"title"`
	DocType  string    `json:"docType"`
	Content  string    `json:"content"`
	Segments []Segment `json:"segments,omitempty"`
}

// Query scopes a document search.
type Query struct {
	ProjectKey string
	DocType    string
	Profile    string
	Query      string
}

// Searcher is the narrow interface onto the document index.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Document, error)
}
