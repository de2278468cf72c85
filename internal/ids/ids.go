package ids

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const Alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// New returns a 128-bit time-ordered identifier in its canonical string form.
// Every entity ID in the store comes from here.
func New() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Random returns length characters picked uniformly from alphabet.
func Random(length int, alphabet string) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive, got %d", length)
	}
	if alphabet == "" {
		return "", fmt.Errorf("alphabet is empty")
	}

	max := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf), nil
}
