// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the colors of the progress display. All colors use
// lipgloss ANSI 256-color codes for broad terminal compatibility, except
// the bar gradient which takes hex colors.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Status line colors.
	Warning lipgloss.Color
	Failure lipgloss.Color
	Success lipgloss.Color

	// Bar gradient endpoints, as "#rrggbb".
	GradientStart string
	GradientEnd   string
}

// DefaultTheme is the built-in dark-terminal color scheme.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	Warning: lipgloss.Color("220"), // yellow/amber
	Failure: lipgloss.Color("196"), // red
	Success: lipgloss.Color("114"), // green

	GradientStart: "#5A56E0",
	GradientEnd:   "#EE6FF8",
}

// styles are the lipgloss styles derived from a theme for one renderer.
type styles struct {
	title   lipgloss.Style
	faint   lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	success lipgloss.Style
}

func (theme Theme) styles(renderer *lipgloss.Renderer) styles {
	return styles{
		title:   renderer.NewStyle().Bold(true).Foreground(theme.NormalText),
		faint:   renderer.NewStyle().Foreground(theme.FaintText),
		warning: renderer.NewStyle().Foreground(theme.Warning),
		failure: renderer.NewStyle().Bold(true).Foreground(theme.Failure),
		success: renderer.NewStyle().Foreground(theme.Success),
	}
}
