// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// EnvOutput selects the personality level when set.
const EnvOutput = "BIP39_KEYGEN_OUTPUT"

// PersonalityLevel defines the verbosity and richness of CLI output
type PersonalityLevel string

const (
	// PersonalityStandard enables colors, icons and boxes
	PersonalityStandard PersonalityLevel = "standard"

	// PersonalityMinimal uses icons and basic formatting only
	PersonalityMinimal PersonalityLevel = "minimal"

	// PersonalityMachine outputs plain key=value text for scripting and never prompts
	PersonalityMachine PersonalityLevel = "machine"
)

// Personality holds the current UX personality configuration
type Personality struct {
	Level PersonalityLevel
}

var (
	currentPersonality = DefaultPersonality()
	personalityMu      sync.RWMutex
)

// GetPersonality returns the current personality settings
func GetPersonality() Personality {
	personalityMu.RLock()
	defer personalityMu.RUnlock()
	return currentPersonality
}

// SetPersonalityLevel updates the personality level
func SetPersonalityLevel(level PersonalityLevel) {
	personalityMu.Lock()
	defer personalityMu.Unlock()
	currentPersonality.Level = level
}

// ParsePersonalityLevel converts a string to PersonalityLevel.
// Unknown values map to standard.
func ParsePersonalityLevel(s string) PersonalityLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minimal", "min", "m":
		return PersonalityMinimal
	case "machine", "quiet", "q":
		return PersonalityMachine
	default:
		return PersonalityStandard
	}
}

// InitPersonality picks the level from, in order: the explicit value
// (from a flag or config), BIP39_KEYGEN_OUTPUT, and whether stdout is a
// terminal.
func InitPersonality(explicit string) {
	if explicit != "" {
		SetPersonalityLevel(ParsePersonalityLevel(explicit))
		return
	}
	if envLevel := os.Getenv(EnvOutput); envLevel != "" {
		SetPersonalityLevel(ParsePersonalityLevel(envLevel))
		return
	}
	if !isTerminal(os.Stdout) {
		SetPersonalityLevel(PersonalityMachine)
		return
	}
	SetPersonalityLevel(PersonalityStandard)
}

// isTerminal reports whether f is a terminal, including Cygwin/MSYS ptys.
func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// IsInteractive returns true if prompts may be shown: the level is not
// machine and both stdin and stdout are terminals.
func IsInteractive() bool {
	return GetPersonality().Level != PersonalityMachine && isTerminal(os.Stdin) && isTerminal(os.Stdout)
}

// DefaultPersonality returns the default personality settings
func DefaultPersonality() Personality {
	return Personality{Level: PersonalityStandard}
}
