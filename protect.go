package forestlog

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// Protector transforms a draft into the opaque payload stored with a record.
// Implementations must satisfy Unprotect(Protect(d)) == d.
type Protector interface {
	Protect(d Draft) (string, error)
	Unprotect(payload string) (Draft, error)
}

// placeholderPrefix marks payloads written by PlaceholderProtector.
const placeholderPrefix = "FHE-"

// PlaceholderProtector reproduces the legacy "FHE-" payload: the draft as
// JSON, base64 encoded, behind a fixed prefix.
//
// It is NOT encryption. Anyone holding the payload can read the draft.
// It only keeps the stored layout compatible with existing ledger data.
type PlaceholderProtector struct{}

// Protect encodes d.
func (PlaceholderProtector) Protect(d Draft) (string, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encode draft: %w", err)
	}
	return placeholderPrefix + base64.StdEncoding.EncodeToString(raw), nil
}

// Unprotect decodes a payload produced by Protect.
func (PlaceholderProtector) Unprotect(payload string) (Draft, error) {
	body, ok := strings.CutPrefix(payload, placeholderPrefix)
	if !ok {
		return Draft{}, fmt.Errorf("%w: payload missing %q prefix", ErrDecodeFault, placeholderPrefix)
	}
	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return Draft{}, fmt.Errorf("%w: payload: %v", ErrDecodeFault, err)
	}
	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return Draft{}, fmt.Errorf("%w: payload: %v", ErrDecodeFault, err)
	}
	return d, nil
}

// sealedPrefix marks payloads written by SealedProtector.
const sealedPrefix = "SEAL-"

// SealedProtector seals the JSON draft with XChaCha20-Poly1305 under a
// caller-supplied key. Payload layout: "SEAL-" + base64(nonce || ciphertext).
type SealedProtector struct {
	key [chacha20poly1305.KeySize]byte
}

// NewSealedProtector creates a SealedProtector from a 32-byte key.
func NewSealedProtector(key []byte) (*SealedProtector, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("invalid key size: expected %d, got %d", chacha20poly1305.KeySize, len(key))
	}
	p := &SealedProtector{}
	copy(p.key[:], key)
	return p, nil
}

// Protect seals d with a fresh random nonce.
func (p *SealedProtector) Protect(d Draft) (string, error) {
	aead, err := chacha20poly1305.NewX(p.key[:])
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encode draft: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(raw)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, raw, []byte(sealedPrefix))
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Unprotect opens a payload produced by Protect with the same key.
func (p *SealedProtector) Unprotect(payload string) (Draft, error) {
	body, ok := strings.CutPrefix(payload, sealedPrefix)
	if !ok {
		return Draft{}, fmt.Errorf("%w: payload missing %q prefix", ErrDecodeFault, sealedPrefix)
	}
	sealed, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return Draft{}, fmt.Errorf("%w: payload: %v", ErrDecodeFault, err)
	}
	aead, err := chacha20poly1305.NewX(p.key[:])
	if err != nil {
		return Draft{}, err
	}
	if len(sealed) < aead.NonceSize() {
		return Draft{}, fmt.Errorf("%w: payload too short", ErrDecodeFault)
	}
	nonce, ct := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	raw, err := aead.Open(nil, nonce, ct, []byte(sealedPrefix))
	if err != nil {
		return Draft{}, fmt.Errorf("%w: open payload: %w", ErrDecodeFault, err)
	}
	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return Draft{}, fmt.Errorf("%w: payload: %v", ErrDecodeFault, err)
	}
	return d, nil
}
