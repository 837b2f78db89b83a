// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling and prompts for the
// bip39-keygen CLI.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	ColorAccent  = lipgloss.Color("#2CD7C7") // headings, highlights
	ColorPrimary = lipgloss.Color("#20B9B4") // interactive elements
	ColorBorder  = lipgloss.Color("#16858E") // box borders
	ColorSlate   = lipgloss.Color("#2C4A54") // muted text

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title     lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	Box        lipgloss.Style
	WarningBox lipgloss.Style
	WordIndex  lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorAccent),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorAccent).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(0, 1),
	WarningBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorWarning).
		Padding(0, 1),
	WordIndex: lipgloss.NewStyle().Foreground(ColorSlate).Width(4).Align(lipgloss.Right),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "→"
	IconKey     Icon = "⚿"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return string(i)
	}
}

var (
	outMu  sync.Mutex
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// SetOutput redirects the print helpers. It returns a function that
// restores the previous writers.
func SetOutput(out, errOut io.Writer) (restore func()) {
	outMu.Lock()
	defer outMu.Unlock()
	prevOut, prevErr := stdout, stderr
	stdout, stderr = out, errOut
	return func() {
		outMu.Lock()
		defer outMu.Unlock()
		stdout, stderr = prevOut, prevErr
	}
}

func writers() (io.Writer, io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	return stdout, stderr
}

// Print helpers that respect personality level

// Title prints a styled title
func Title(text string) {
	if GetPersonality().Level == PersonalityMachine {
		return
	}
	out, _ := writers()
	fmt.Fprintln(out, Styles.Title.Render(text))
}

// Success prints a success message with checkmark
func Success(text string) {
	out, _ := writers()
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Fprintf(out, "OK: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(out, "%s %s\n", IconSuccess.Render(), text)
	default:
		fmt.Fprintf(out, "%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
	}
}

// Warning prints a warning message to stderr
func Warning(text string) {
	_, errOut := writers()
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Fprintf(errOut, "WARN: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(errOut, "%s %s\n", IconWarning.Render(), text)
	default:
		fmt.Fprintf(errOut, "%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
	}
}

// Error prints an error message to stderr
func Error(text string) {
	_, errOut := writers()
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Fprintf(errOut, "ERROR: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(errOut, "%s %s\n", IconError.Render(), text)
	default:
		fmt.Fprintf(errOut, "%s %s\n", IconError.Render(), Styles.Error.Render(text))
	}
}

// Info prints an informational message
func Info(text string) {
	out, _ := writers()
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Fprintln(out, text)
	default:
		fmt.Fprintf(out, "%s %s\n", Styles.Muted.Render("│"), text)
	}
}

// Field prints a labelled value. Machine output is "key=value" so scripts
// can pick fields out with cut or grep.
func Field(key, label, value string) {
	out, _ := writers()
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Fprintf(out, "%s=%s\n", key, value)
	default:
		fmt.Fprintf(out, "  %s %s %s\n", IconArrow.Render(), Styles.Muted.Render(label+":"), value)
	}
}

// Box prints text in a rounded box
func Box(title, content string) {
	out, _ := writers()
	if GetPersonality().Level == PersonalityMachine {
		fmt.Fprintf(out, "%s: %s\n", title, content)
		return
	}
	boxStyle := Styles.Box.Width(64)
	fmt.Fprintln(out, boxStyle.Render(Styles.Title.Render(title)+"\n"+content))
}

// WarningBox prints text in a warning-styled box on stderr
func WarningBox(title, content string) {
	_, errOut := writers()
	if GetPersonality().Level == PersonalityMachine {
		fmt.Fprintf(errOut, "WARN %s: %s\n", title, content)
		return
	}
	boxStyle := Styles.WarningBox.Width(64)
	fmt.Fprintln(errOut, boxStyle.Render(Styles.Warning.Bold(true).Render(title)+"\n"+content))
}

// MnemonicBox prints a recovery phrase as a numbered grid inside a box.
// Machine output is a single "mnemonic=<words>" line.
func MnemonicBox(title string, words []string) {
	if GetPersonality().Level == PersonalityMachine {
		out, _ := writers()
		fmt.Fprintf(out, "mnemonic=%s\n", strings.Join(words, " "))
		return
	}
	Box(title, FormatWordGrid(words, 4))
}

// FormatWordGrid lays words out in rows of cols entries, each prefixed by
// its 1-based position.
func FormatWordGrid(words []string, cols int) string {
	if cols <= 0 {
		cols = 1
	}
	width := 0
	for _, w := range words {
		if len(w) > width {
			width = len(w)
		}
	}

	var b strings.Builder
	for i, w := range words {
		if i > 0 && i%cols == 0 {
			b.WriteString("\n")
		}
		b.WriteString(Styles.WordIndex.Render(fmt.Sprintf("%d.", i+1)))
		b.WriteString(" ")
		b.WriteString(Styles.Bold.Render(w))
		if (i+1)%cols != 0 && i != len(words)-1 {
			b.WriteString(strings.Repeat(" ", width-len(w)+2))
		}
	}
	return b.String()
}
