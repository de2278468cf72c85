// Package credential hashes and checks passwords.
//
// Two schemes can be found in the users table: bcrypt, which every new or
// migrated credential uses, and the legacy unsalted SHA-256 hex digest that
// older accounts were created with. A legacy credential is only replaced
// after a successful login, see identity.Directory.Login.
package credential

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordLength is the longest input bcrypt accepts.
const MaxPasswordLength = 72

type Store struct {
	cost  int
	decoy []byte
}

func New(cost int) *Store {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	// a short constant input cannot make GenerateFromPassword fail
	decoy, _ := bcrypt.GenerateFromPassword([]byte("decoy credential"), cost)
	return &Store{cost: cost, decoy: decoy}
}

func (s *Store) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Check reports whether password matches the stored credential, whichever
// scheme it was written with.
func (s *Store) Check(password string, stored string) bool {
	if IsLegacy(stored) {
		digest := LegacyHash(password)
		return subtle.ConstantTimeCompare([]byte(digest), []byte(strings.ToLower(stored))) == 1
	}

	err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(password))
	if err != nil && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false
	}
	return err == nil
}

// CheckMissing does the work of a failed bcrypt Check for an account that
// does not exist. It always returns false.
func (s *Store) CheckMissing(password string) bool {
	_ = bcrypt.CompareHashAndPassword(s.decoy, []byte(password))
	return false
}

// NeedsRehash reports whether stored should be replaced with a current hash.
func (s *Store) NeedsRehash(stored string) bool {
	if IsLegacy(stored) {
		return true
	}
	cost, err := bcrypt.Cost([]byte(stored))
	if err != nil {
		return true
	}
	return cost < s.cost
}

// IsLegacy reports whether stored is a legacy SHA-256 hex digest.
func IsLegacy(stored string) bool {
	if len(stored) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(stored)
	return err == nil
}

func LegacyHash(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
