// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux renders CLI output. Styled when stdout is a terminal,
// plain when piped.
package ux

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// VaultSage palette.
var (
	ColorMoss   = lipgloss.Color("#7FB069") // answers, success
	ColorParch  = lipgloss.Color("#D9C8A9") // titles
	ColorSlate  = lipgloss.Color("#6B7A8F") // muted text, paths
	ColorAmber  = lipgloss.Color("#F4D03F") // abstains, warnings
	ColorRust   = lipgloss.Color("#C0533E") // errors
	ColorIndigo = lipgloss.Color("#5B7FA6") // scores, accents
)

// Styles are the pre-configured lipgloss styles.
var Styles = struct {
	Title   lipgloss.Style
	Answer  lipgloss.Style
	Muted   lipgloss.Style
	Abstain lipgloss.Style
	Error   lipgloss.Style
	Score   lipgloss.Style
	Box     lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorParch),
	Answer:  lipgloss.NewStyle().Foreground(ColorMoss),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	Abstain: lipgloss.NewStyle().Foreground(ColorAmber).Italic(true),
	Error:   lipgloss.NewStyle().Foreground(ColorRust).Bold(true),
	Score:   lipgloss.NewStyle().Foreground(ColorIndigo),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorSlate).
		Padding(0, 1),
}

// IsTerminal reports whether stdout is an interactive terminal.
func IsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
