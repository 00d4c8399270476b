package docdex

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DocKind classifies a resolved planning document.
type DocKind string

const (
	KindSDS      DocKind = "sds"
	KindOpenAPI  DocKind = "openapi"
	KindFallback DocKind = "fallback"
)

// KindForDocType maps a document type string onto its kind.
func KindForDocType(docType string) DocKind {
	switch strings.ToLower(docType) {
	case "sds":
		return KindSDS
	case "openapi", "openapi_spec", "api_spec":
		return KindOpenAPI
	default:
		return KindFallback
	}
}

// Policy controls whether a planning document is required for a run.
type Policy string

const (
	// PolicyNone accepts running without any planning document.
	PolicyNone Policy = ""
	// PolicyRequireAny fails when no planning document resolves.
	PolicyRequireAny Policy = "require_any"
	// PolicyRequireSDSOrOpenAPI additionally requires the resolved
	// document to be an SDS or OpenAPI spec.
	PolicyRequireSDSOrOpenAPI Policy = "require_sds_or_openapi"
)

// ErrPlanningContext indicates a policy violation. This aborts the calling
// command.
var ErrPlanningContext = errors.New("planning context policy violation")

// PlanningContext is the resolved document text supplied to agent prompts.
type PlanningContext struct {
	Doc  Document
	Kind DocKind
	Text string
}

// docTypePreference is the resolution order: SDS first, then OpenAPI, then
// anything the index returns for a generic planning query.
var docTypePreference = []string{"sds", "openapi"}

// Resolve finds the best planning document for a project and enforces the
// policy. A nil context with a nil error means no document was needed or
// found and the run proceeds ungrounded.
func Resolve(ctx context.Context, searcher Searcher, projectKey string, policy Policy) (*PlanningContext, error) {
	if searcher == nil {
		if policy != PolicyNone {
			return nil, fmt.Errorf("%w: policy %q set but no document index available", ErrPlanningContext, policy)
		}
		return nil, nil
	}

	var doc *Document
	for _, docType := range docTypePreference {
		docs, err := searcher.Search(ctx, Query{ProjectKey: projectKey, DocType: docType})
		if err != nil {
			return nil, fmt.Errorf("search %s docs: %w", docType, err)
		}
		if len(docs) > 0 {
			doc = &docs[0]
			break
		}
	}
	if doc == nil {
		docs, err := searcher.Search(ctx, Query{ProjectKey: projectKey, Profile: "planning"})
		if err != nil {
			return nil, fmt.Errorf("search planning docs: %w", err)
		}
		if len(docs) > 0 {
			doc = &docs[0]
		}
	}

	if doc == nil {
		if policy == PolicyRequireAny || policy == PolicyRequireSDSOrOpenAPI {
			return nil, fmt.Errorf("%w: no planning document found for project %q", ErrPlanningContext, projectKey)
		}
		return nil, nil
	}

	kind := KindForDocType(doc.DocType)
	if policy == PolicyRequireSDSOrOpenAPI && kind != KindSDS && kind != KindOpenAPI {
		return nil, fmt.Errorf("%w: resolved document %q is %s, need sds or openapi", ErrPlanningContext, doc.ID, kind)
	}

	text := renderDoc(doc)
	if kind == KindOpenAPI {
		// Hint extraction is best effort; a malformed document still grounds
		// the prompt with its raw text.
		if hints, err := ExtractTaskHints(doc.Content); err == nil && len(hints) > 0 {
			text += "\n" + renderHints(hints)
		}
	}

	return &PlanningContext{Doc: *doc, Kind: kind, Text: text}, nil
}

// renderHints flattens operation task hints into a prompt section.
func renderHints(hints []TaskHint) string {
	var b strings.Builder
	b.WriteString("Task hints:\n")
	for _, h := range hints {
		b.WriteString(fmt.Sprintf("- %s %s", h.Method, h.Path))
		if h.OperationID != "" {
			b.WriteString(" (" + h.OperationID + ")")
		}
		b.WriteString(": ")
		b.WriteString(strings.Join(h.Hints, "; "))
		b.WriteString("\n")
	}
	return b.String()
}

// renderDoc flattens a document into prompt text, preferring segments when
// the index provides them.
func renderDoc(doc *Document) string {
	var b strings.Builder
	if doc.Title != "" {
		b.WriteString(doc.Title)
		b.WriteString("\n\n")
	}
	if len(doc.Segments) == 0 {
		b.WriteString(doc.Content)
		return b.String()
	}
	for _, seg := range doc.Segments {
		if seg.Heading != "" {
			b.WriteString("## ")
			b.WriteString(seg.Heading)
			b.WriteString("\n")
		}
		b.WriteString(seg.Content)
		b.WriteString("\n")
	}
	return b.String()
}
