// Package signer computes and verifies tamper-evident event signatures.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/gowebpki/jcs"
	"golang.org/x/crypto/hkdf"

	"github.com/and161185/cv-keeper/internal/model"
)

const (
	keyLen  = 32
	keyInfo = "cv-keeper/event-signature/v1"
)

// Signer holds the derived HMAC key. It is safe for concurrent use.
type Signer struct {
	key []byte
}

// New derives the MAC key from secret with HKDF-SHA256.
func New(secret []byte) (*Signer, error) {
	if len(secret) == 0 {
		return nil, errors.New("signer: empty secret")
	}
	key := make([]byte, keyLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("signer: derive key: %w", err)
	}
	return &Signer{key: key}, nil
}

type envelope struct {
	EventType model.EventType `json:"eventType"`
	CVID      string          `json:"cvId"`
	UserID    string          `json:"userId"`
	Payload   json.RawMessage `json:"payload"`
}

// Canonical returns the RFC 8785 form of the signed fields.
func Canonical(t model.EventType, cvID, userID string, payload json.RawMessage) ([]byte, error) {
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	raw, err := json.Marshal(envelope{EventType: t, CVID: cvID, UserID: userID, Payload: payload})
	if err != nil {
		return nil, err
	}
	return jcs.Transform(raw)
}

// Sign returns the hex HMAC-SHA256 of the canonical envelope.
func (s *Signer) Sign(t model.EventType, cvID, userID string, payload json.RawMessage) (string, error) {
	data, err := Canonical(t, cvID, userID, payload)
	if err != nil {
		return "", fmt.Errorf("signer: canonicalize: %w", err)
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify reports whether ev carries the signature of its own content.
func (s *Signer) Verify(ev model.Event) bool {
	want, err := hex.DecodeString(ev.Signature)
	if err != nil || len(want) == 0 {
		return false
	}
	got, err := s.Sign(ev.Type, ev.CVID, ev.UserID, ev.Payload)
	if err != nil {
		return false
	}
	gotRaw, _ := hex.DecodeString(got)
	return hmac.Equal(gotRaw, want)
}
