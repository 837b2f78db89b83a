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
	"bytes"
	"crypto/ed25519"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/awnumar/memguard"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/ssh"
)

// KeyType names an SSH key algorithm.
type KeyType string

// KeyTypeEd25519 is the only supported algorithm.
const KeyTypeEd25519 KeyType = "ed25519"

var (
	// ErrUnsupportedKeyType is returned for any KeyType other than ed25519.
	ErrUnsupportedKeyType = errors.New("unsupported key type")

	// ErrShortSeed is returned when the seed holds fewer bytes than the
	// key algorithm needs.
	ErrShortSeed = errors.New("seed too short")
)

// ParseKeyType validates a key type name.
func ParseKeyType(s string) (KeyType, error) {
	switch KeyType(s) {
	case KeyTypeEd25519:
		return KeyTypeEd25519, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKeyType, s)
	}
}

// KeyPair is an OpenSSH key pair ready to be written to disk.
type KeyPair struct {
	Type    KeyType
	Comment string

	// PublicKey is one authorized_keys line including the trailing newline.
	PublicKey []byte

	// PrivateKey holds the unencrypted OpenSSH PEM block in locked memory.
	PrivateKey *memguard.LockedBuffer

	// Fingerprint is the SHA256 fingerprint of the public key.
	Fingerprint string
}

// Destroy wipes the private key.
func (kp *KeyPair) Destroy() {
	if kp.PrivateKey != nil {
		kp.PrivateKey.Destroy()
	}
}

// DeriveSeed runs the BIP39 seed derivation (PBKDF2-HMAC-SHA512, 2048
// rounds, salt "mnemonic"+passphrase) and moves the result into locked
// memory. The caller must Destroy the buffer.
func DeriveSeed(mnemonic, passphrase string) (*memguard.LockedBuffer, error) {
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMnemonic, err)
	}
	// NewBufferFromBytes wipes seed.
	return memguard.NewBufferFromBytes(seed), nil
}

// DeriveKeyPair builds a key pair of the given type from the seed.
//
// Description:
//
//	The Ed25519 private key is derived from the first 32 seed bytes, so the
//	same mnemonic and passphrase always yield the same key. The public key is
//	rendered in authorized_keys format with the comment appended.
//
// Inputs:
//
//	seed - BIP39 seed from DeriveSeed.
//	keyType - Must be KeyTypeEd25519.
//	comment - Key comment, e.g. "user@host". May be empty.
//
// Outputs:
//
//	*KeyPair - The encoded pair. The caller must Destroy it.
//	error - ErrUnsupportedKeyType, ErrShortSeed or an encoding error.
func DeriveKeyPair(seed *memguard.LockedBuffer, keyType KeyType, comment string) (*KeyPair, error) {
	if keyType != KeyTypeEd25519 {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKeyType, keyType)
	}
	if seed == nil || seed.Size() < ed25519.SeedSize {
		return nil, ErrShortSeed
	}

	priv := ed25519.NewKeyFromSeed(seed.Bytes()[:ed25519.SeedSize])
	defer memguard.WipeBytes(priv)

	pub, err := ssh.NewPublicKey(priv.Public())
	if err != nil {
		return nil, fmt.Errorf("failed to encode public key: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(priv, comment)
	if err != nil {
		return nil, fmt.Errorf("failed to encode private key: %w", err)
	}
	pemBytes := pem.EncodeToMemory(block)
	memguard.WipeBytes(block.Bytes)

	return &KeyPair{
		Type:        keyType,
		Comment:     comment,
		PublicKey:   authorizedKey(pub, comment),
		PrivateKey:  memguard.NewBufferFromBytes(pemBytes),
		Fingerprint: ssh.FingerprintSHA256(pub),
	}, nil
}

// authorizedKey renders pub as "<type> <base64> <comment>\n".
func authorizedKey(pub ssh.PublicKey, comment string) []byte {
	line := bytes.TrimSuffix(ssh.MarshalAuthorizedKey(pub), []byte("\n"))
	if comment != "" {
		line = append(line, ' ')
		line = append(line, comment...)
	}
	return append(line, '\n')
}
