// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"fmt"
	"strings"

	"github.com/vaultsage/vaultsage/services/lorechat/agent/tools"
	"github.com/vaultsage/vaultsage/services/lorechat/provenance"
	"github.com/vaultsage/vaultsage/services/retrieval"
	"github.com/vaultsage/vaultsage/services/vault"
)

// maxContextChars bounds the evidence block fed to generation.
const maxContextChars = 24000

// buildSynthesisPrompt assembles the generation prompt: numbered
// evidence excerpts keyed to the ranked sources, then the citation
// contract, then the question.
func buildSynthesisPrompt(userMessage string, exec *tools.ExecutionResult, sources []provenance.SourceEntry) string {
	var b strings.Builder

	b.WriteString("You answer questions about a personal Markdown vault. ")
	b.WriteString("Use ONLY the numbered evidence below. ")
	b.WriteString("Cite every factual claim with a footnote marker like [^1] ")
	b.WriteString("and end the answer with a \"## Sources\" section listing ")
	b.WriteString("each cited note as [^n]: <path>. ")
	b.WriteString("If the evidence does not answer the question, say so.\n\n")

	contentByPath := contentIndex(exec)
	b.WriteString("Evidence:\n")
	for i, src := range sources {
		excerpt := contentByPath[src.Path]
		if len(excerpt) > maxContextChars/max(len(sources), 1) {
			excerpt = excerpt[:maxContextChars/max(len(sources), 1)]
		}
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n\n", i+1, src.Title, src.Path, excerpt)
	}

	b.WriteString("Question: ")
	b.WriteString(userMessage)
	return b.String()
}

// contentIndex maps note paths to the text tools actually fetched.
func contentIndex(exec *tools.ExecutionResult) map[string]string {
	index := make(map[string]string)
	if exec == nil {
		return index
	}
	for _, output := range exec.ToolOutputs {
		switch result := output.Result.(type) {
		case *retrieval.Result:
			for _, doc := range result.Documents {
				if doc.Content != "" {
					index[doc.Path] = doc.Content
				}
			}
		case *vault.NoteContent:
			index[result.NotePath] = result.Content
		}
	}
	return index
}
