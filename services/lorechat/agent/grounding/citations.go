// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package grounding

import (
	"regexp"
)

// CitationVerifier checks that answer text carries footnote-style
// inline citations paired with a rendered sources section.
//
// Thread Safety: Safe for concurrent use; compiled patterns are
// read-only after construction.
type CitationVerifier struct {
	markerPattern  *regexp.Regexp
	sectionPattern *regexp.Regexp
}

// NewCitationVerifier creates a verifier for footnote citations.
func NewCitationVerifier() *CitationVerifier {
	return &CitationVerifier{
		// Inline marker: [^1], [^12]. A footnote definition [^1]: is
		// excluded here and matched by the section pattern instead.
		markerPattern: regexp.MustCompile(`\[\^\d+\](?:[^:]|$)`),
		// Sources section: either footnote definitions or a heading.
		sectionPattern: regexp.MustCompile(`(?mi)^(\[\^\d+\]:|#+\s*sources\b|sources:)`),
	}
}

// HasInlineCitations reports whether the text contains at least one
// inline citation marker.
func (v *CitationVerifier) HasInlineCitations(text string) bool {
	return v.markerPattern.MatchString(text)
}

// HasSourcesSection reports whether the text renders a sources section.
func (v *CitationVerifier) HasSourcesSection(text string) bool {
	return v.sectionPattern.MatchString(text)
}

// Verify reports whether the text satisfies the full citation
// requirement: at least one inline marker and a sources section.
func (v *CitationVerifier) Verify(text string) bool {
	return v.HasInlineCitations(text) && v.HasSourcesSection(text)
}
