package credential_test

import (
	"chatcore/internal/credential"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCheck(t *testing.T) {
	s := credential.New(bcrypt.MinCost)

	hash, err := s.Hash("correct horse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2"))
	assert.False(t, credential.IsLegacy(hash))

	assert.True(t, s.Check("correct horse", hash))
	assert.False(t, s.Check("wrong horse", hash))
	assert.False(t, s.NeedsRehash(hash))
}

func TestLegacyScheme(t *testing.T) {
	s := credential.New(bcrypt.MinCost)
	legacy := credential.LegacyHash("hunter2")

	tests := []struct {
		name     string
		password string
		stored   string
		want     bool
	}{
		{name: "Valid: legacy digest", password: "hunter2", stored: legacy, want: true},
		{name: "Valid: upper case digest", password: "hunter2", stored: strings.ToUpper(legacy), want: true},
		{name: "Error: wrong password", password: "hunter3", stored: legacy, want: false},
		{name: "Error: garbage credential", password: "hunter2", stored: "not a hash", want: false},
		{name: "Error: empty credential", password: "hunter2", stored: "", want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, s.Check(tc.password, tc.stored))
		})
	}

	assert.True(t, credential.IsLegacy(legacy))
	assert.True(t, s.NeedsRehash(legacy))
}

func TestNeedsRehashOnLowerCost(t *testing.T) {
	weak, err := credential.New(bcrypt.MinCost).Hash("pw")
	require.NoError(t, err)

	assert.True(t, credential.New(bcrypt.MinCost+1).NeedsRehash(weak))
	assert.True(t, credential.New(bcrypt.MinCost).NeedsRehash("garbage"))
}

func TestTooLongPassword(t *testing.T) {
	_, err := credential.New(bcrypt.MinCost).Hash(strings.Repeat("a", credential.MaxPasswordLength+1))
	assert.Error(t, err)
}
