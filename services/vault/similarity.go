// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package vault

import "strings"

// titleSimilarity scores how well a note title matches a query.
//
// Description:
//
//	Both inputs must be normalized (lowercased, trimmed). Scoring:
//	  1.0        exact match
//	  0.9        query contained in title (or vice versa)
//	  (0, 0.8]   1 - normalized Levenshtein distance, floored at 0 when
//	             more than 60% of the longer string must change
//
// Thread Safety: Safe for concurrent use.
func titleSimilarity(query, title string) float64 {
	if query == "" || title == "" {
		return 0
	}
	if query == title {
		return 1.0
	}
	if contains(title, query) || contains(query, title) {
		return 0.9
	}

	longer := len(query)
	if len(title) > longer {
		longer = len(title)
	}
	dist := levenshteinDistance(query, title)
	ratio := float64(dist) / float64(longer)
	if ratio > 0.6 {
		return 0
	}
	return 0.8 * (1 - ratio)
}

// contains guards against trivially short needles inflating scores.
func contains(haystack, needle string) bool {
	if len(needle) < 3 {
		return false
	}
	return strings.Contains(haystack, needle)
}

// levenshteinDistance calculates the edit distance between two strings.
//
// Uses O(min(m,n)) space with two rolling rows instead of a full matrix.
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Ensure b is the shorter string for space optimization
	if len(a) < len(b) {
		a, b = b, a
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(
				min(prev[j]+1, curr[j-1]+1), // deletion or insertion
				prev[j-1]+cost,              // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
