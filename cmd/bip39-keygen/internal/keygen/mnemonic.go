// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package keygen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// DefaultWords is the length of a generated mnemonic when none is requested.
const DefaultWords = 12

var (
	// ErrWordCount is returned for a mnemonic length other than 12 or 24.
	ErrWordCount = errors.New("mnemonic must have 12 or 24 words")

	// ErrInvalidMnemonic is returned when a phrase has unknown words or a
	// bad checksum.
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
)

// entropyBits maps a word count to its BIP39 entropy size.
var entropyBits = map[int]int{
	12: 128,
	24: 256,
}

// GenerateMnemonic returns a fresh English mnemonic of the given length.
func GenerateMnemonic(words int) (string, error) {
	bits, ok := entropyBits[words]
	if !ok {
		return "", fmt.Errorf("%w: got %d", ErrWordCount, words)
	}

	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return "", fmt.Errorf("failed to read entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("failed to encode mnemonic: %w", err)
	}
	return mnemonic, nil
}

// ParseMnemonic normalizes whitespace and case in s and checks the word
// list and checksum.
func ParseMnemonic(s string) (string, error) {
	words := strings.Fields(strings.ToLower(s))
	if _, ok := entropyBits[len(words)]; !ok {
		return "", fmt.Errorf("%w: got %d", ErrWordCount, len(words))
	}

	mnemonic := strings.Join(words, " ")
	if _, err := bip39.EntropyFromMnemonic(mnemonic); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidMnemonic, err)
	}
	return mnemonic, nil
}

// Words splits a normalized mnemonic into its words.
func Words(mnemonic string) []string {
	return strings.Fields(mnemonic)
}
