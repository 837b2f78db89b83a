// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// Errors returned by prompters.
var (
	// ErrNonInteractive is returned when a prompt is needed but the session
	// cannot show one.
	ErrNonInteractive = errors.New("cannot prompt in a non-interactive session")

	// ErrCancelled is returned when the user aborts a prompt (Ctrl+C, Esc).
	ErrCancelled = errors.New("prompt cancelled")
)

// Prompter asks the user questions.
//
// # Description
//
// Commands depend on this interface instead of a concrete terminal so the
// whole flow can be tested with MockPrompter, and so a non-interactive
// session fails fast instead of hanging on stdin.
type Prompter interface {
	// Confirm asks a yes/no question. defaultYes is returned on an empty
	// answer.
	Confirm(ctx context.Context, prompt string, defaultYes bool) (bool, error)

	// Password reads a line without echoing it.
	Password(ctx context.Context, prompt string) (string, error)

	// IsInteractive reports whether prompts can be shown.
	IsInteractive() bool
}

// =============================================================================
// InteractivePrompter
// =============================================================================

// InteractivePrompter shows prompts on the terminal.
//
// Created with NewInteractivePrompter it renders huh forms. Created with
// NewInteractivePrompterWithIO it falls back to plain line prompts on the
// given reader and writer, which is what tests and piped sessions use.
type InteractivePrompter struct {
	in  *bufio.Reader
	out io.Writer
	mu  sync.Mutex
}

// NewInteractivePrompter returns a prompter that renders huh forms.
func NewInteractivePrompter() *InteractivePrompter {
	return &InteractivePrompter{}
}

// NewInteractivePrompterWithIO returns a line-based prompter.
func NewInteractivePrompterWithIO(in io.Reader, out io.Writer) *InteractivePrompter {
	return &InteractivePrompter{in: bufio.NewReader(in), out: out}
}

// Confirm asks a yes/no question.
func (p *InteractivePrompter) Confirm(ctx context.Context, prompt string, defaultYes bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if p.in == nil {
		answer := defaultYes
		field := huh.NewConfirm().
			Title(prompt).
			Affirmative("Yes").
			Negative("No").
			Value(&answer)
		if err := p.runForm(ctx, field); err != nil {
			return false, err
		}
		return answer, nil
	}

	hint := "[y/N]"
	if defaultYes {
		hint = "[Y/n]"
	}
	line, err := p.readLine(fmt.Sprintf("%s %s ", prompt, hint))
	if err != nil {
		return false, err
	}
	switch strings.ToLower(line) {
	case "y", "yes":
		return true, nil
	case "":
		return defaultYes, nil
	default:
		return false, nil
	}
}

// Password reads a secret.
func (p *InteractivePrompter) Password(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.in == nil {
		var value string
		field := huh.NewInput().
			Title(prompt).
			EchoMode(huh.EchoModePassword).
			Value(&value)
		if err := p.runForm(ctx, field); err != nil {
			return "", err
		}
		return value, nil
	}
	return p.readLine(prompt + " ")
}

// IsInteractive always returns true.
func (p *InteractivePrompter) IsInteractive() bool {
	return true
}

func (p *InteractivePrompter) runForm(ctx context.Context, field huh.Field) error {
	form := huh.NewForm(huh.NewGroup(field)).WithTheme(keygenTheme())
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ErrCancelled
		}
		return fmt.Errorf("prompt: %w", err)
	}
	return nil
}

// readLine writes prompt and reads one trimmed line. EOF counts as an
// empty answer.
func (p *InteractivePrompter) readLine(prompt string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// keygenTheme returns the huh theme matching the CLI palette.
func keygenTheme() *huh.Theme {
	t := huh.ThemeBase()

	t.Focused.Title = t.Focused.Title.Foreground(ColorAccent).Bold(true)
	t.Focused.Description = t.Focused.Description.Foreground(ColorSlate)
	t.Focused.Base = t.Focused.Base.BorderForeground(ColorBorder)
	t.Focused.FocusedButton = t.Focused.FocusedButton.
		Foreground(lipgloss.Color("#0F1923")).
		Background(ColorPrimary)
	t.Focused.BlurredButton = t.Focused.BlurredButton.Foreground(ColorSlate)
	t.Focused.TextInput.Cursor = t.Focused.TextInput.Cursor.Foreground(ColorAccent)
	t.Focused.TextInput.Prompt = t.Focused.TextInput.Prompt.Foreground(ColorPrimary)
	t.Focused.ErrorMessage = t.Focused.ErrorMessage.Foreground(ColorError)

	t.Blurred = t.Focused
	t.Blurred.Base = t.Blurred.Base.BorderStyle(lipgloss.HiddenBorder())
	return t
}

// =============================================================================
// NonInteractivePrompter
// =============================================================================

// NonInteractivePrompter refuses every prompt with ErrNonInteractive.
type NonInteractivePrompter struct{}

// Confirm returns ErrNonInteractive.
func (NonInteractivePrompter) Confirm(_ context.Context, prompt string, _ bool) (bool, error) {
	return false, fmt.Errorf("%q: %w", prompt, ErrNonInteractive)
}

// Password returns ErrNonInteractive.
func (NonInteractivePrompter) Password(_ context.Context, prompt string) (string, error) {
	return "", fmt.Errorf("%q: %w", prompt, ErrNonInteractive)
}

// IsInteractive returns false.
func (NonInteractivePrompter) IsInteractive() bool {
	return false
}

// =============================================================================
// MockPrompter
// =============================================================================

// PromptCall records one call made to a MockPrompter.
type PromptCall struct {
	Method     string
	Prompt     string
	DefaultYes bool
}

// MockPrompter is a test double. Calling a method whose func is nil panics.
type MockPrompter struct {
	ConfirmFunc       func(ctx context.Context, prompt string, defaultYes bool) (bool, error)
	PasswordFunc      func(ctx context.Context, prompt string) (string, error)
	IsInteractiveFunc func() bool

	Calls []PromptCall
	mu    sync.Mutex
}

// Confirm records the call and delegates to ConfirmFunc.
func (m *MockPrompter) Confirm(ctx context.Context, prompt string, defaultYes bool) (bool, error) {
	m.record(PromptCall{Method: "Confirm", Prompt: prompt, DefaultYes: defaultYes})
	if m.ConfirmFunc == nil {
		panic("MockPrompter.ConfirmFunc not set")
	}
	return m.ConfirmFunc(ctx, prompt, defaultYes)
}

// Password records the call and delegates to PasswordFunc.
func (m *MockPrompter) Password(ctx context.Context, prompt string) (string, error) {
	m.record(PromptCall{Method: "Password", Prompt: prompt})
	if m.PasswordFunc == nil {
		panic("MockPrompter.PasswordFunc not set")
	}
	return m.PasswordFunc(ctx, prompt)
}

// IsInteractive returns true unless IsInteractiveFunc says otherwise.
func (m *MockPrompter) IsInteractive() bool {
	if m.IsInteractiveFunc == nil {
		return true
	}
	return m.IsInteractiveFunc()
}

// Reset clears the call history.
func (m *MockPrompter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}

func (m *MockPrompter) record(call PromptCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, call)
}

// Compile-time interface checks
var (
	_ Prompter = (*InteractivePrompter)(nil)
	_ Prompter = NonInteractivePrompter{}
	_ Prompter = (*MockPrompter)(nil)
)
