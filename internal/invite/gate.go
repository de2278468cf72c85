// Package invite hands out invite codes and admits users to servers through
// them.
package invite

import (
	"chatcore/internal/apperr"
	"chatcore/internal/database"
	"chatcore/internal/ids"
	"chatcore/internal/membership"
	"chatcore/internal/models"
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// MaxAge is the longest lifetime in seconds an invite can be given.
const MaxAge = 7 * 24 * 60 * 60

const (
	CodeLength       = 8
	maxCodeAttempts  = 3
	errInvalidInvite = "invite is invalid or has expired"
)

// replaced in tests
var newCode = func() (string, error) {
	return ids.Random(CodeLength, ids.Alphanumeric)
}

type Gate struct {
	db     *database.DB
	ledger *membership.Ledger
	sugar  *zap.SugaredLogger
}

func NewGate(db *database.DB, ledger *membership.Ledger, sugar *zap.SugaredLogger) *Gate {
	return &Gate{db: db, ledger: ledger, sugar: sugar}
}

// validity filter shared by every read of a redeemable invite
func (g *Gate) validClause() string {
	now := g.db.Dialect.Now
	return "(i.max_uses = 0 OR i.uses < i.max_uses) AND (i.expires_at IS NULL OR i.expires_at > " + now + ")"
}

// CreateInvite creates a code for serverID, optionally pinned to channelID.
// maxAge is in seconds, 0 meaning no expiry; maxUses 0 means unlimited.
func (g *Gate) CreateInvite(ctx context.Context, inviterID string, serverID string, channelID string, maxAge int, maxUses int) (models.InviteCode, error) {
	if maxAge < 0 {
		return models.InviteCode{}, apperr.Validation("maxAge must not be negative")
	}
	if maxAge > MaxAge {
		return models.InviteCode{}, apperr.Validation(fmt.Sprintf("maxAge must be at most %d seconds", MaxAge))
	}
	if maxUses < 0 {
		return models.InviteCode{}, apperr.Validation("maxUses must not be negative")
	}

	var invite models.InviteCode
	err := g.db.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := membership.GetServer(ctx, tx, serverID); err != nil {
			return err
		}

		member, err := membership.IsMember(ctx, tx, serverID, inviterID)
		if err != nil {
			return err
		}
		if !member {
			return apperr.NotFound("server not found")
		}

		var pinned any
		if channelID != "" {
			var exists bool
			err = tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM channels WHERE id = ? AND server_id = ?)", channelID, serverID).
				Scan(&exists)
			if err != nil {
				return err
			}
			if !exists {
				return apperr.NotFound("channel not found")
			}
			pinned = channelID
		}

		expires, expiresArg := "NULL", any(nil)
		if maxAge > 0 {
			expires, expiresArg = g.db.Dialect.NowPlusSeconds(maxAge)
		}

		for attempt := 1; ; attempt++ {
			code, err := newCode()
			if err != nil {
				return err
			}

			args := []any{code, serverID, pinned, inviterID, maxUses}
			if expiresArg != nil {
				args = append(args, expiresArg)
			}

			_, err = tx.ExecContext(ctx, `INSERT INTO invites (code, server_id, channel_id, inviter_id, max_uses, expires_at)
				VALUES (?, ?, ?, ?, ?, `+expires+`)`, args...)
			if database.IsUniqueViolation(err) {
				if attempt < maxCodeAttempts {
					g.sugar.Debugw("invite code collision, generating another", "attempt", attempt)
					continue
				}
				return apperr.Conflict("could not generate a unique invite code, try again")
			} else if err != nil {
				return err
			}

			invite, err = getInvite(ctx, tx, code)
			return err
		}
	})
	if err != nil {
		return models.InviteCode{}, err
	}

	g.sugar.Infow("invite created", "serverID", serverID, "inviterID", inviterID, "maxUses", maxUses, "maxAge", maxAge)
	return invite, nil
}

func getInvite(ctx context.Context, q database.Queryer, code string) (models.InviteCode, error) {
	var invite models.InviteCode
	var channelID sql.NullString
	var expiresAt sql.NullTime

	err := q.QueryRowContext(ctx, `SELECT code, server_id, channel_id, inviter_id, max_uses, uses, expires_at, created_at
		FROM invites WHERE code = ?`, code).
		Scan(&invite.Code, &invite.ServerID, &channelID, &invite.InviterID, &invite.MaxUses, &invite.Uses, &expiresAt, &invite.CreatedAt)
	if err != nil {
		return models.InviteCode{}, err
	}

	invite.ChannelID = channelID.String
	if expiresAt.Valid {
		invite.ExpiresAt = &expiresAt.Time
	}
	return invite, nil
}

// Redeem admits userID to the invite's server. The validity check, the
// membership insert and the use count increment commit together or not at
// all.
func (g *Gate) Redeem(ctx context.Context, code string, userID string) (models.Server, error) {
	if code == "" {
		return models.Server{}, apperr.NotFound(errInvalidInvite)
	}

	var server models.Server
	err := g.db.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var serverID string
		err := tx.QueryRowContext(ctx, "SELECT i.server_id FROM invites i WHERE i.code = ? AND "+g.validClause(), code).
			Scan(&serverID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound(errInvalidInvite)
		} else if err != nil {
			return err
		}

		if _, err = g.ledger.JoinDirect(ctx, tx, serverID, userID); err != nil {
			return err
		}

		// the validity filter is evaluated again against the latest row, so
		// concurrent redemptions cannot push uses past max_uses
		result, err := tx.ExecContext(ctx, `UPDATE invites SET uses = uses + 1
			WHERE code = ? AND (max_uses = 0 OR uses < max_uses) AND (expires_at IS NULL OR expires_at > `+g.db.Dialect.Now+`)`, code)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return apperr.NotFound(errInvalidInvite)
		}

		server, err = membership.GetServer(ctx, tx, serverID)
		return err
	})
	if err != nil {
		return models.Server{}, err
	}

	g.sugar.Infow("invite redeemed", "serverID", server.ID, "userID", userID)
	return server, nil
}

// Preview describes the server behind a valid code without redeeming it.
func (g *Gate) Preview(ctx context.Context, code string) (models.InvitePreview, error) {
	var preview models.InvitePreview
	err := g.db.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT i.code, s.id, s.name, s.icon
			FROM invites i JOIN servers s ON s.id = i.server_id
			WHERE i.code = ? AND `+g.validClause(), code).
			Scan(&preview.Code, &preview.ServerID, &preview.ServerName, &preview.ServerIcon)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound(errInvalidInvite)
		} else if err != nil {
			return err
		}

		preview.MemberCount, err = membership.MemberCount(ctx, tx, preview.ServerID)
		return err
	})
	return preview, err
}
