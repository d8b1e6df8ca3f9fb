// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/charmbracelet/lipgloss"
)

// Campusmind palette - collegiate blues with a gold accent
var (
	colorBlueBright  = lipgloss.Color("#4FA8FF") // highlights, links
	colorBluePrimary = lipgloss.Color("#2E7DD1") // main brand color
	colorBlueDeep    = lipgloss.Color("#1B4E8A") // borders, accents
	colorGold        = lipgloss.Color("#E8B93E") // warnings, emphasis
	colorSlate       = lipgloss.Color("#5C6B7A") // muted text
	colorError       = lipgloss.Color("#E74C3C")
	colorSuccess     = lipgloss.Color("#3ECF8E")
)

// styles holds the pre-configured lipgloss styles used by the CLI output.
var styles = struct {
	Title    lipgloss.Style
	Prompt   lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Source   lipgloss.Style
	Answer   lipgloss.Style
	Progress lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(colorBlueBright),
	Prompt:  lipgloss.NewStyle().Bold(true).Foreground(colorBluePrimary),
	Muted:   lipgloss.NewStyle().Foreground(colorSlate),
	Success: lipgloss.NewStyle().Foreground(colorSuccess),
	Warning: lipgloss.NewStyle().Foreground(colorGold),
	Error:   lipgloss.NewStyle().Foreground(colorError),
	Source:  lipgloss.NewStyle().Foreground(colorBlueBright),
	Answer: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBlueDeep).
		Padding(0, 1),
	Progress: lipgloss.NewStyle().Foreground(colorSlate).Italic(true),
}
