// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"github.com/vaultsage/vaultsage/services/lorechat/provenance"
)

const (
	// LoreNoteClass is the Weaviate class holding note chunks.
	LoreNoteClass = "LoreNote"

	// LoreRelationClass holds extracted entity relations
	// {subject, relation, object, sourcePath}.
	LoreRelationClass = "LoreRelation"

	// defaultSearchLimit is how many chunks one search fetches.
	defaultSearchLimit = 12

	// hybridAlpha balances vector (1.0) against keyword (0.0) search.
	hybridAlpha = 0.6
)

// WeaviateSearcher implements Searcher on a Weaviate instance.
//
// Thread Safety: Safe for concurrent use.
type WeaviateSearcher struct {
	client   *weaviate.Client
	logger   *slog.Logger
	excluded []string
	limit    int
}

// WeaviateSearcherOption configures a WeaviateSearcher.
type WeaviateSearcherOption func(*WeaviateSearcher)

// WithSearchLimit sets how many chunks a search fetches.
func WithSearchLimit(limit int) WeaviateSearcherOption {
	return func(s *WeaviateSearcher) {
		s.limit = limit
	}
}

// WithSearcherExclusions sets corpus exclusion patterns applied to
// retrieved paths.
func WithSearcherExclusions(patterns []string) WeaviateSearcherOption {
	return func(s *WeaviateSearcher) {
		s.excluded = patterns
	}
}

// WithSearcherLogger sets the logger.
func WithSearcherLogger(logger *slog.Logger) WeaviateSearcherOption {
	return func(s *WeaviateSearcher) {
		s.logger = logger
	}
}

// NewWeaviateSearcher creates a searcher backed by the given client.
//
// Inputs:
//
//	client - Weaviate client. Must not be nil.
//	opts - Configuration options.
//
// Outputs:
//
//	*WeaviateSearcher - The configured searcher.
//	error - Non-nil if client is nil.
func NewWeaviateSearcher(client *weaviate.Client, opts ...WeaviateSearcherOption) (*WeaviateSearcher, error) {
	if client == nil {
		return nil, errors.New("weaviate client must not be nil")
	}
	s := &WeaviateSearcher{
		client: client,
		logger: slog.Default(),
		limit:  defaultSearchLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Search implements Searcher.
//
// Description:
//
//	Runs a hybrid query against the LoreNote class, drops excluded
//	paths, then derives entity metadata: the query is entity-targeted
//	when a tagged entity name appears in it, and for each such entity
//	the LoreRelation class is consulted for graph evidence.
//
// Thread Safety: Safe for concurrent use.
func (s *WeaviateSearcher) Search(ctx context.Context, query string, salientTerms []string) (*Result, error) {
	hybrid := s.client.GraphQL().HybridArgumentBuilder().
		WithQuery(query).
		WithAlpha(hybridAlpha)

	fields := []graphql.Field{
		{Name: "title"},
		{Name: "path"},
		{Name: "content"},
		{Name: "entityNames"},
		{Name: "_additional { score }"},
	}

	resp, err := s.client.GraphQL().Get().
		WithClassName(LoreNoteClass).
		WithFields(fields...).
		WithHybrid(hybrid).
		WithLimit(s.limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("hybrid search: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("hybrid search error: %s", resp.Errors[0].Message)
	}

	data := make(map[string]any, len(resp.Data))
	for k, v := range resp.Data {
		data[k] = v
	}
	docs := s.parseDocuments(data)

	result := &Result{Documents: docs}
	matched := matchedEntities(query, salientTerms, docs)
	result.EntityQueryMode = len(matched) > 0

	if result.EntityQueryMode {
		hits, evErr := s.entityEvidence(ctx, matched, docs)
		if evErr != nil {
			// Evidence lookup failing must not sink the search; the gate
			// will treat the result as evidence-free.
			s.logger.Warn("entity evidence lookup failed",
				slog.String("query", query),
				slog.String("error", evErr.Error()),
			)
		} else {
			result.EntityEvidence = hits
		}
	}

	s.logger.Debug("primary retrieval completed",
		slog.String("query", query),
		slog.Int("documents", len(docs)),
		slog.Bool("entity_query_mode", result.EntityQueryMode),
	)
	return result, nil
}

// parseDocuments converts the GraphQL payload into documents.
func (s *WeaviateSearcher) parseDocuments(data map[string]any) []Document {
	get, ok := data["Get"].(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := get[LoreNoteClass].([]any)
	if !ok {
		return nil
	}

	docs := make([]Document, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		doc := Document{
			Title:       getString(m, "title"),
			Path:        getString(m, "path"),
			Content:     getString(m, "content"),
			EntityNames: getStringSlice(m, "entityNames"),
		}
		if s.isExcluded(doc.Path) {
			continue
		}
		if additional, ok := m["_additional"].(map[string]any); ok {
			doc.Score = parseScore(additional["score"])
		}
		doc.RerankScore = doc.Score
		docs = append(docs, doc)
	}
	return docs
}

// entityEvidence queries the relation class for graph proof tying the
// matched entities to retrieved notes.
func (s *WeaviateSearcher) entityEvidence(ctx context.Context, entities []string, docs []Document) ([]EntityHit, error) {
	where := filters.Where().
		WithOperator(filters.Or).
		WithOperands([]*filters.WhereBuilder{
			filters.Where().
				WithPath([]string{"subject"}).
				WithOperator(filters.ContainsAny).
				WithValueText(entities...),
			filters.Where().
				WithPath([]string{"object"}).
				WithOperator(filters.ContainsAny).
				WithValueText(entities...),
		})

	resp, err := s.client.GraphQL().Get().
		WithClassName(LoreRelationClass).
		WithFields(
			graphql.Field{Name: "subject"},
			graphql.Field{Name: "relation"},
			graphql.Field{Name: "object"},
			graphql.Field{Name: "sourcePath"},
		).
		WithWhere(where).
		WithLimit(50).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("relation lookup: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("relation lookup error: %s", resp.Errors[0].Message)
	}

	byPath := make(map[string]*provenance.EntityGraphEvidence)
	get, _ := resp.Data["Get"].(map[string]any)
	raw, _ := get[LoreRelationClass].([]any)
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		subject := getString(m, "subject")
		relation := getString(m, "relation")
		object := getString(m, "object")
		source := getString(m, "sourcePath")
		if source == "" || relation == "" {
			continue
		}

		ev := byPath[source]
		if ev == nil {
			ev = &provenance.EntityGraphEvidence{HopDepth: 1}
			byPath[source] = ev
		}
		ev.MatchedEntities = appendUnique(ev.MatchedEntities, subject, object)
		ev.RelationTypes = appendUnique(ev.RelationTypes, relation)
		ev.RelationPaths = append(ev.RelationPaths,
			fmt.Sprintf("%s -[%s]-> %s", subject, relation, object))
		ev.EvidenceRefs = appendUnique(ev.EvidenceRefs, source)
		ev.EvidenceCount++
		ev.ScoreContribution += 0.05
	}

	// Only surface evidence for notes that were actually retrieved.
	hits := make([]EntityHit, 0, len(byPath))
	for _, doc := range docs {
		if ev, ok := byPath[doc.Path]; ok {
			hits = append(hits, EntityHit{Path: doc.Path, Evidence: *ev})
		}
	}
	return hits, nil
}

// matchedEntities returns tagged entity names that occur in the query
// or salient terms, preserving first-seen order.
func matchedEntities(query string, salientTerms []string, docs []Document) []string {
	haystack := strings.ToLower(query + " " + strings.Join(salientTerms, " "))

	var matched []string
	seen := make(map[string]bool)
	for _, doc := range docs {
		for _, name := range doc.EntityNames {
			lower := strings.ToLower(name)
			if lower == "" || seen[lower] {
				continue
			}
			if strings.Contains(haystack, lower) {
				seen[lower] = true
				matched = append(matched, name)
			}
		}
	}
	return matched
}

// isExcluded applies corpus exclusion patterns to a retrieved path.
func (s *WeaviateSearcher) isExcluded(path string) bool {
	for _, pattern := range s.excluded {
		if strings.HasSuffix(pattern, "/") {
			if strings.HasPrefix(path, pattern) {
				return true
			}
			continue
		}
		if ok, _ := filepath.Match(pattern, path); ok {
			return true
		}
	}
	return false
}

// parseScore handles Weaviate returning hybrid scores as strings.
func parseScore(v any) float64 {
	switch score := v.(type) {
	case float64:
		return score
	case string:
		if f, err := strconv.ParseFloat(score, 64); err == nil {
			return f
		}
	}
	return 0
}

func getString(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func getStringSlice(m map[string]any, key string) []string {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if v == "" {
			continue
		}
		found := false
		for _, existing := range dst {
			if existing == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}
