// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package vault indexes the user's Markdown note corpus.
//
// The index is the deterministic side of retrieval: it answers
// title-similarity lookups and direct note reads without any model or
// vector store involved. The answering pipeline leans on it when vector
// search comes back weak.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ErrNoteNotFound is returned when a requested note path is not in the index.
var ErrNoteNotFound = errors.New("note not found in vault")

// ErrVaultClosed is returned by operations on a closed index.
var ErrVaultClosed = errors.New("vault index is closed")

// NoteRef is a lightweight handle to an indexed note.
type NoteRef struct {
	// Path is the vault-relative path, forward slashes.
	Path string `json:"path"`

	// Title is the note title (file stem).
	Title string `json:"title"`
}

// TitleMatch is one ranked result of a title lookup.
type TitleMatch struct {
	NoteRef

	// Score is title similarity in [0,1]; 1 is an exact match.
	Score float64 `json:"score"`
}

// NoteContent is the result of a direct note read.
type NoteContent struct {
	// NotePath is the vault-relative path that was read.
	NotePath string `json:"notePath"`

	// NoteTitle is the note title.
	NoteTitle string `json:"noteTitle"`

	// ChunkID identifies the returned chunk (path#ordinal).
	ChunkID string `json:"chunkId"`

	// Content is the note body.
	Content string `json:"content"`
}

// Index is an in-memory index over a Markdown vault directory.
//
// Description:
//
//	Scans the vault once at Open, honors corpus exclusion patterns, and
//	keeps itself current through an fsnotify watcher. Lookups and reads
//	are served from the index; reads go to disk for content so the index
//	never holds note bodies.
//
// Thread Safety: Index is safe for concurrent use.
type Index struct {
	mu sync.RWMutex

	root     string
	excluded []string
	logger   *slog.Logger

	// notes maps vault-relative path to ref.
	notes map[string]NoteRef

	watcher *fsnotify.Watcher
	done    chan struct{}
	closed  bool
}

// IndexOption configures an Index.
type IndexOption func(*Index)

// WithExclusionPatterns sets glob patterns excluded from the corpus.
//
// Patterns match vault-relative paths (path.Match semantics) or, when
// ending in "/", whole folder prefixes.
func WithExclusionPatterns(patterns []string) IndexOption {
	return func(i *Index) {
		i.excluded = patterns
	}
}

// WithIndexLogger sets the logger.
func WithIndexLogger(logger *slog.Logger) IndexOption {
	return func(i *Index) {
		i.logger = logger
	}
}

// Open scans the vault root and starts the change watcher.
//
// Inputs:
//
//	root - Absolute path to the vault directory.
//	opts - Configuration options.
//
// Outputs:
//
//	*Index - The ready index. Caller must Close it.
//	error - Non-nil if the root cannot be scanned.
func Open(root string, opts ...IndexOption) (*Index, error) {
	idx := &Index{
		root:   root,
		logger: slog.Default(),
		notes:  make(map[string]NoteRef),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(idx)
	}

	if err := idx.scan(); err != nil {
		return nil, fmt.Errorf("scanning vault %s: %w", root, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating vault watcher: %w", err)
	}
	idx.watcher = watcher

	if err := idx.watchDirs(); err != nil {
		watcher.Close()
		return nil, err
	}
	go idx.watchLoop()

	idx.logger.Info("vault index opened",
		slog.String("root", root),
		slog.Int("notes", len(idx.notes)),
	)
	return idx, nil
}

// Close stops the watcher. Idempotent.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true
	close(i.done)
	if i.watcher != nil {
		return i.watcher.Close()
	}
	return nil
}

// Count returns the number of indexed notes.
func (i *Index) Count() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.notes)
}

// TitleLookup ranks indexed notes by title similarity to the query.
//
// Description:
//
//	Similarity is exact-match first, then substring containment, then
//	normalized Levenshtein distance over lowercased titles. Results are
//	sorted by descending score; at most limit entries return (limit <= 0
//	means 10).
//
// Thread Safety: Safe for concurrent use.
func (i *Index) TitleLookup(ctx context.Context, query string, limit int) ([]TitleMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return nil, ErrVaultClosed
	}
	if limit <= 0 {
		limit = 10
	}

	needle := normalizeTitle(query)
	matches := make([]TitleMatch, 0, len(i.notes))
	for _, ref := range i.notes {
		score := titleSimilarity(needle, normalizeTitle(ref.Title))
		if score <= 0 {
			continue
		}
		matches = append(matches, TitleMatch{NoteRef: ref, Score: score})
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Score > matches[b].Score
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// ReadNote reads a note's content from disk.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	notePath - Vault-relative path (with or without .md).
//
// Outputs:
//
//	*NoteContent - Path, title, chunk id, and body.
//	error - ErrNoteNotFound if the path is not indexed.
//
// Thread Safety: Safe for concurrent use.
func (i *Index) ReadNote(ctx context.Context, notePath string) (*NoteContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	i.mu.RLock()
	if i.closed {
		i.mu.RUnlock()
		return nil, ErrVaultClosed
	}
	ref, ok := i.notes[normalizePath(notePath)]
	i.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoteNotFound, notePath)
	}

	data, err := os.ReadFile(filepath.Join(i.root, filepath.FromSlash(ref.Path)))
	if err != nil {
		return nil, fmt.Errorf("reading note %s: %w", ref.Path, err)
	}

	return &NoteContent{
		NotePath:  ref.Path,
		NoteTitle: ref.Title,
		ChunkID:   ref.Path + "#0",
		Content:   string(data),
	}, nil
}

// scan walks the vault root and indexes Markdown notes.
func (i *Index) scan() error {
	return filepath.WalkDir(i.root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(i.root, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && (strings.HasPrefix(d.Name(), ".") || i.isExcluded(rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(p), ".md") || i.isExcluded(rel) {
			return nil
		}

		i.notes[rel] = NoteRef{Path: rel, Title: titleFromPath(rel)}
		return nil
	})
}

// watchDirs registers every directory under root with the watcher.
func (i *Index) watchDirs() error {
	return filepath.WalkDir(i.root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && p != i.root {
			return filepath.SkipDir
		}
		if err := i.watcher.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
}

// watchLoop applies filesystem events to the index until Close.
func (i *Index) watchLoop() {
	for {
		select {
		case <-i.done:
			return
		case event, ok := <-i.watcher.Events:
			if !ok {
				return
			}
			i.applyEvent(event)
		case err, ok := <-i.watcher.Errors:
			if !ok {
				return
			}
			i.logger.Warn("vault watcher error", slog.String("error", err.Error()))
		}
	}
}

// applyEvent updates the index for one filesystem event.
func (i *Index) applyEvent(event fsnotify.Event) {
	rel, err := filepath.Rel(i.root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if !strings.EqualFold(filepath.Ext(rel), ".md") {
		// New directories need a watch; everything else is ignored.
		if event.Op.Has(fsnotify.Create) {
			if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
				_ = i.watcher.Add(event.Name)
			}
		}
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	switch {
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		delete(i.notes, rel)
	case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
		if !i.isExcluded(rel) {
			i.notes[rel] = NoteRef{Path: rel, Title: titleFromPath(rel)}
		}
	}
}

// isExcluded reports whether a vault-relative path matches an exclusion
// pattern. Patterns ending in "/" exclude whole folders.
func (i *Index) isExcluded(rel string) bool {
	for _, pattern := range i.excluded {
		if strings.HasSuffix(pattern, "/") {
			if strings.HasPrefix(rel, pattern) || rel == strings.TrimSuffix(pattern, "/")+"/" {
				return true
			}
			continue
		}
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, filepath.Base(rel)); ok {
			return true
		}
	}
	return false
}

// titleFromPath derives a note title from its vault-relative path.
func titleFromPath(rel string) string {
	base := filepath.Base(rel)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// normalizePath canonicalizes a user-supplied note path for lookup.
func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	p = filepath.ToSlash(p)
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimPrefix(p, "/")
	if !strings.EqualFold(filepath.Ext(p), ".md") {
		p += ".md"
	}
	return p
}

func normalizeTitle(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
