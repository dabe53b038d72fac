// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"

	"github.com/dylanclarke890/krystal/lib/secret"
)

const identityPrefix = "AGE-SECRET-KEY-1"

// maxIdentityFileSize bounds how much of an identity file is read.
const maxIdentityFileSize = 64 * 1024

// ErrNoIdentity is returned when an identity file holds no age secret
// key.
var ErrNoIdentity = errors.New("sealed: no age identity found")

// Keypair holds an age x25519 keypair. The caller must call Close when
// the keypair is no longer needed.
type Keypair struct {
	// PrivateKey is the secret key in AGE-SECRET-KEY-1... form. It must
	// never be logged or passed on a command line.
	PrivateKey *secret.Buffer

	// PublicKey is the recipient string in age1... form.
	PublicKey string
}

// Close releases the private key memory. Idempotent.
func (k *Keypair) Close() error {
	if k.PrivateKey != nil {
		return k.PrivateKey.Close()
	}
	return nil
}

// GenerateKeypair generates a new age x25519 keypair.
func GenerateKeypair() (*Keypair, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("sealed: generating age keypair: %w", err)
	}
	// The identity's string form is on the heap until collected; the
	// buffer is the durable copy.
	privateKey, err := secret.NewFromBytes([]byte(identity.String()))
	if err != nil {
		return nil, fmt.Errorf("sealed: protecting private key: %w", err)
	}
	return &Keypair{
		PrivateKey: privateKey,
		PublicKey:  identity.Recipient().String(),
	}, nil
}

// FormatIdentity renders keypair in the layout age-keygen writes.
func FormatIdentity(keypair *Keypair) []byte {
	var buffer bytes.Buffer
	fmt.Fprintf(&buffer, "# public key: %s\n", keypair.PublicKey)
	buffer.Write(keypair.PrivateKey.Bytes())
	buffer.WriteByte('\n')
	return buffer.Bytes()
}

// ParseRecipients parses age1... public keys. At least one is required.
func ParseRecipients(recipientKeys []string) ([]age.Recipient, error) {
	if len(recipientKeys) == 0 {
		return nil, errors.New("sealed: at least one recipient is required")
	}
	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("sealed: parsing recipient %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}
	return recipients, nil
}

// WrapKey encrypts masterKey to every recipient and returns the raw age
// ciphertext.
func WrapKey(masterKey *secret.Buffer, recipientKeys []string) ([]byte, error) {
	recipients, err := ParseRecipients(recipientKeys)
	if err != nil {
		return nil, err
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipients...)
	if err != nil {
		return nil, fmt.Errorf("sealed: creating age encryptor: %w", err)
	}
	if _, err := writer.Write(masterKey.Bytes()); err != nil {
		return nil, fmt.Errorf("sealed: writing key to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("sealed: finalizing age encryption: %w", err)
	}
	return ciphertext.Bytes(), nil
}

// UnwrapKey decrypts a key produced by [WrapKey] with privateKey, which
// is borrowed. The caller must Close the returned buffer.
func UnwrapKey(wrapped []byte, privateKey *secret.Buffer) (*secret.Buffer, error) {
	identity, err := age.ParseX25519Identity(string(privateKey.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("sealed: parsing private key: %w", err)
	}

	reader, err := age.Decrypt(bytes.NewReader(wrapped), identity)
	if err != nil {
		return nil, fmt.Errorf("sealed: unwrapping key: %w", err)
	}
	// One byte of slack detects an oversized payload.
	plaintext, err := io.ReadAll(io.LimitReader(reader, secret.KeySize+1))
	if err != nil {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("sealed: reading unwrapped key: %w", err)
	}
	if len(plaintext) != secret.KeySize {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("sealed: unwrapped key is %d bytes, want %d", len(plaintext), secret.KeySize)
	}
	return secret.NewFromBytes(plaintext)
}

// ReadIdentityFile reads the first age secret key from an identity file
// such as one written by age-keygen. Comment and blank lines are
// skipped. The path "-" reads standard input.
func ReadIdentityFile(path string) (*secret.Buffer, error) {
	var source io.Reader
	if path == "-" {
		source = os.Stdin
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("sealed: opening identity file: %w", err)
		}
		defer file.Close()
		source = file
	}

	data, err := io.ReadAll(io.LimitReader(source, maxIdentityFileSize))
	if err != nil {
		return nil, fmt.Errorf("sealed: reading identity file: %w", err)
	}
	defer secret.Zero(data)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if !bytes.HasPrefix(line, []byte(identityPrefix)) {
			continue
		}
		key, err := secret.NewFromBytes(bytes.Clone(line))
		if err != nil {
			return nil, fmt.Errorf("sealed: protecting identity: %w", err)
		}
		return key, nil
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("sealed: scanning identity file: %w", err)
	}
	return nil, fmt.Errorf("%w in %s", ErrNoIdentity, path)
}
