// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/vaultsage/vaultsage/services/lorechat/provenance"
)

// AnswerRenderer writes a finalized answer with its sources.
//
// Thread Safety: Not safe for concurrent use; one renderer per output.
type AnswerRenderer struct {
	w      io.Writer
	styled bool
}

// NewAnswerRenderer creates a renderer. styled selects colored output.
func NewAnswerRenderer(w io.Writer, styled bool) *AnswerRenderer {
	return &AnswerRenderer{w: w, styled: styled}
}

// RenderAnswer writes the answer text. Abstains get distinct styling
// so they read as a deliberate refusal, not an error.
func (r *AnswerRenderer) RenderAnswer(text string, abstained bool) {
	if !r.styled {
		fmt.Fprintln(r.w, text)
		return
	}
	if abstained {
		fmt.Fprintln(r.w, Styles.Abstain.Render(text))
		return
	}
	fmt.Fprintln(r.w, Styles.Answer.Render(text))
}

// RenderSources writes the ranked source list with evidence tags.
func (r *AnswerRenderer) RenderSources(sources []provenance.SourceEntry) {
	if len(sources) == 0 {
		return
	}

	var b strings.Builder
	for i, src := range sources {
		tag := ""
		if src.HasEntityEvidence() {
			tag = " [entity-backed]"
		}
		line := fmt.Sprintf("%d. %s (%s) %.2f%s", i+1, src.Title, src.Path, src.Score, tag)
		if r.styled {
			line = fmt.Sprintf("%d. %s %s %s%s",
				i+1,
				Styles.Title.Render(src.Title),
				Styles.Muted.Render("("+src.Path+")"),
				Styles.Score.Render(fmt.Sprintf("%.2f", src.Score)),
				Styles.Muted.Render(tag),
			)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	header := "Sources"
	if r.styled {
		fmt.Fprintln(r.w, Styles.Box.Render(Styles.Title.Render(header)+"\n"+strings.TrimRight(b.String(), "\n")))
		return
	}
	fmt.Fprintf(r.w, "\n%s:\n%s", header, b.String())
}

// RenderError writes a failure message.
func (r *AnswerRenderer) RenderError(message string) {
	if r.styled {
		fmt.Fprintln(r.w, Styles.Error.Render("error: "+message))
		return
	}
	fmt.Fprintln(r.w, "error: "+message)
}
