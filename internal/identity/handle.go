package identity

import (
	"chatcore/internal/database"
	"chatcore/internal/models"
	"context"
	"database/sql"
	"fmt"
	"math/rand/v2"
)

const MaxDiscriminator = 9999

// replaced in tests
var randomDiscriminator = func() int {
	return rand.IntN(MaxDiscriminator) + 1
}

// Allocate picks the next discriminator for username: one above the highest
// one in use, 1 for a new username, or a random one in [1, 9999] once the
// counter is exhausted. The pick is only a proposal, UNIQUE(username,
// discriminator) decides whether it holds.
func Allocate(ctx context.Context, q database.Queryer, username string) (int, error) {
	var highest sql.NullInt64
	err := q.QueryRowContext(ctx, "SELECT MAX(discriminator) FROM users WHERE username = ?", username).Scan(&highest)
	if err != nil {
		return 0, err
	}

	if !highest.Valid {
		return 1, nil
	}
	if highest.Int64 >= MaxDiscriminator {
		return randomDiscriminator(), nil
	}
	return int(highest.Int64) + 1, nil
}

func FormatDiscriminator(discriminator int) string {
	return fmt.Sprintf("%04d", discriminator)
}

func FormatHandle(username string, discriminator int) string {
	return username + "#" + FormatDiscriminator(discriminator)
}

// PublicColumns lists the users columns PublicScan reads, for use in joins
// where the users table is aliased as u.
const PublicColumns = "u.id, u.username, u.discriminator, u.avatar, u.status"

type PublicScan struct {
	user          models.PublicUser
	discriminator int
}

func (s *PublicScan) Dest() []any {
	return []any{&s.user.ID, &s.user.UserName, &s.discriminator, &s.user.Avatar, &s.user.Status}
}

func (s *PublicScan) User() models.PublicUser {
	u := s.user
	u.Discriminator = FormatDiscriminator(s.discriminator)
	u.Handle = FormatHandle(u.UserName, s.discriminator)
	return u
}
