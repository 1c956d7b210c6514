// Package confighmac implements the config-integrity HMAC contract of
// spec §6: a collaborating vault derives a key via scrypt and MACs the
// canonical JSON of a sorted policy set. This package supplies the pure
// derivation/verification functions and a Verifier the Manager can
// optionally be constructed with; the vault's key storage, passcode/session
// handling, and trust-on-first-use bookkeeping are out of scope.
package confighmac

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/crypto/scrypt"

	"github.com/agenshield/skillcore/pkg/skillerr"
)

const (
	keySalt  = "agenshield-vault-v1"
	keyLabel = "agenshield-config-integrity-v1"

	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
)

// PolicyEntry is one policy in the canonicalized set the HMAC covers.
type PolicyEntry struct {
	ID     string `json:"id"`
	Action string `json:"action"`
}

// DeriveKey derives the vault's config-integrity key from machineID and the
// fixed label, via scrypt(machineId||label, salt, N, r, p, keyLen).
func DeriveKey(machineID string) ([]byte, error) {
	passphrase := []byte(machineID + keyLabel)
	key, err := scrypt.Key(passphrase, []byte(keySalt), scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("derive config-integrity key: %w", err)
	}
	return key, nil
}

// CanonicalJSON renders policies sorted by id into deterministic JSON: the
// exact bytes HMAC-SHA256 is computed over.
func CanonicalJSON(policies []PolicyEntry) ([]byte, error) {
	sorted := make([]PolicyEntry, len(policies))
	copy(sorted, policies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	b, err := json.Marshal(sorted)
	if err != nil {
		return nil, fmt.Errorf("canonicalize policies: %w", err)
	}
	return b, nil
}

// Compute returns HMAC-SHA256(key, canonicalJSON(policies)).
func Compute(key []byte, policies []PolicyEntry) ([]byte, error) {
	canon, err := CanonicalJSON(policies)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(canon)
	return mac.Sum(nil), nil
}

// Verifier caches the derived key for the life of the process (spec §5's
// shared-resource policy: "vault-derived HMAC key: cached per process after
// first derivation") and verifies a claimed MAC in constant time.
type Verifier struct {
	key []byte
}

// NewVerifier derives and caches the key for machineID.
func NewVerifier(machineID string) (*Verifier, error) {
	key, err := DeriveKey(machineID)
	if err != nil {
		return nil, err
	}
	return &Verifier{key: key}, nil
}

// Verify reports whether claimedMAC matches the policies, comparing in
// constant time. A mismatch returns a *skillerr.ConfigTamperError.
func (v *Verifier) Verify(policies []PolicyEntry, claimedMAC []byte) error {
	expected, err := Compute(v.key, policies)
	if err != nil {
		return err
	}
	if !hmac.Equal(expected, claimedMAC) {
		return &skillerr.ConfigTamperError{Reason: "HMAC mismatch against canonicalized policy set"}
	}
	return nil
}
