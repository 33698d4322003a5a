// Copyright 2025 Complyd Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ledger

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

const (
	// defaultSignerKeyRotationInterval is the interval after which the
	// checkpoint key should be rotated (90 days)
	defaultSignerKeyRotationInterval = 90 * 24 * time.Hour
	// signerKeyIDLength is the number of key hash characters used as key ID
	signerKeyIDLength = 16
)

// Signer signs chain-tip checkpoints so the ledger head can be anchored in
// an external system and compared against later verification runs.
type Signer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	keyID      string
	keyCreated time.Time
	mu         sync.RWMutex
}

// Checkpoint is a signed snapshot of the chain head
type Checkpoint struct {
	TipHash     string    `json:"tip_hash"`
	TotalEvents int       `json:"total_events"`
	Timestamp   time.Time `json:"timestamp"`
	KeyID       string    `json:"key_id"`
	Signature   string    `json:"signature"`
}

// checkpointPayload is the byte stream the signature covers
type checkpointPayload struct {
	TipHash     string    `json:"tip_hash"`
	TotalEvents int       `json:"total_events"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewSigner creates a checkpoint signer with a generated key pair
func NewSigner() (*Signer, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate checkpoint key pair: %w", err)
	}

	return &Signer{
		privateKey: privateKey,
		publicKey:  publicKey,
		keyID:      signerKeyID(publicKey),
		keyCreated: time.Now().UTC(),
	}, nil
}

// NewSignerFromKey creates a signer from an existing private key
func NewSignerFromKey(privateKey ed25519.PrivateKey) (*Signer, error) {
	publicKey, ok := privateKey.Public().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("invalid private key type")
	}

	return &Signer{
		privateKey: privateKey,
		publicKey:  publicKey,
		keyID:      signerKeyID(publicKey),
		keyCreated: time.Now().UTC(),
	}, nil
}

// Sign produces a signed checkpoint of the given chain head
func (s *Signer) Sign(tipHash string, totalEvents int) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payload := checkpointPayload{
		TipHash:     tipHash,
		TotalEvents: totalEvents,
		Timestamp:   time.Now().UTC(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	signature := ed25519.Sign(s.privateKey, data)

	return &Checkpoint{
		TipHash:     payload.TipHash,
		TotalEvents: payload.TotalEvents,
		Timestamp:   payload.Timestamp,
		KeyID:       s.keyID,
		Signature:   base64.StdEncoding.EncodeToString(signature),
	}, nil
}

// VerifyCheckpoint verifies a checkpoint signature against the signer's
// current key
func (s *Signer) VerifyCheckpoint(cp *Checkpoint) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if cp.KeyID != s.keyID {
		return fmt.Errorf("key ID mismatch: expected %s, got %s", s.keyID, cp.KeyID)
	}

	signature, err := base64.StdEncoding.DecodeString(cp.Signature)
	if err != nil {
		return fmt.Errorf("failed to decode signature: %w", err)
	}

	data, err := json.Marshal(checkpointPayload{
		TipHash:     cp.TipHash,
		TotalEvents: cp.TotalEvents,
		Timestamp:   cp.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	if !ed25519.Verify(s.publicKey, data, signature) {
		return fmt.Errorf("signature verification failed")
	}
	return nil
}

// GetPublicKey returns the public key for external verification
func (s *Signer) GetPublicKey() ed25519.PublicKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.publicKey
}

// GetKeyID returns the key ID
func (s *Signer) GetKeyID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keyID
}

// ShouldRotateKey reports whether the signing key has exceeded its rotation
// interval
func (s *Signer) ShouldRotateKey() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.keyCreated) >= defaultSignerKeyRotationInterval
}

// RotateKey generates a new key pair
func (s *Signer) RotateKey() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate new checkpoint key pair: %w", err)
	}

	s.privateKey = privateKey
	s.publicKey = publicKey
	s.keyID = signerKeyID(publicKey)
	s.keyCreated = time.Now().UTC()
	return nil
}

// signerKeyID derives a short key ID from the public key hash
func signerKeyID(publicKey ed25519.PublicKey) string {
	hash := sha256.Sum256(publicKey)
	return base64.StdEncoding.EncodeToString(hash[:])[:signerKeyIDLength]
}
