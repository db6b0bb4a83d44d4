// Package sealed encrypts biometric templates at rest with age (X25519).
//
// The vault holds one identity.  Templates are sealed to that identity's
// recipient when an account is enrolled and opened only by the biometric
// gateway immediately before a verifier call.
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
)

var ErrNoKey = errors.New("sealed: key file contains no AGE-SECRET-KEY line")

type Vault struct {
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

// NewVault parses an AGE-SECRET-KEY-1... identity string.
func NewVault(identity string) (*Vault, error) {
	id, err := age.ParseX25519Identity(strings.TrimSpace(identity))
	if err != nil {
		return nil, fmt.Errorf("parsing template key: %w", err)
	}
	return &Vault{identity: id, recipient: id.Recipient()}, nil
}

// LoadVault reads an age key file.  Comment lines are skipped, so files
// written by age-keygen work unchanged.
func LoadVault(path string) (*Vault, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open template key: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "AGE-SECRET-KEY-") {
			return NewVault(line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read template key: %w", err)
	}
	return nil, ErrNoKey
}

// GenerateKeyFile writes a fresh identity to path (mode 0600) and returns
// the public recipient string.  It refuses to overwrite an existing file.
func GenerateKeyFile(path string) (string, error) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return "", fmt.Errorf("generating template key: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create key file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "# public key: %s\n%s\n", id.Recipient(), id); err != nil {
		return "", fmt.Errorf("write key file: %w", err)
	}
	return id.Recipient().String(), nil
}

// Recipient is the public half, safe to log.
func (v *Vault) Recipient() string { return v.recipient.String() }

// Seal encrypts a plaintext template.
func (v *Vault) Seal(plain []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, v.recipient)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := w.Write(plain); err != nil {
		return nil, fmt.Errorf("writing template: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing template: %w", err)
	}
	return buf.Bytes(), nil
}

// Open decrypts a sealed template.
func (v *Vault) Open(sealed []byte) ([]byte, error) {
	r, err := age.Decrypt(bytes.NewReader(sealed), v.identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting template: %w", err)
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading template: %w", err)
	}
	return plain, nil
}
