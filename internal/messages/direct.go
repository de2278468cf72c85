package messages

import (
	"chatcore/internal/apperr"
	"chatcore/internal/database"
	"chatcore/internal/identity"
	"chatcore/internal/ids"
	"chatcore/internal/models"
	"context"
	"database/sql"
	"errors"
)

var errPairTaken = errors.New("direct channel pair already exists")

// canonicalPair orders two user IDs so that both participants address the
// same direct_channels row.
func canonicalPair(a string, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

func findDirectChannel(ctx context.Context, q database.Queryer, low string, high string) (models.Channel, error) {
	var c models.Channel
	err := q.QueryRowContext(ctx, `SELECT c.id, c.name, c.kind, c.position, c.created_at
		FROM direct_channels d JOIN channels c ON c.id = d.channel_id
		WHERE d.user_low = ? AND d.user_high = ?`, low, high).
		Scan(&c.ID, &c.Name, &c.Kind, &c.Position, &c.CreatedAt)
	return c, err
}

// GetOrCreateDirectChannel returns the one DM channel between two users,
// creating it on first use. The order of the two users does not matter.
func (l *Log) GetOrCreateDirectChannel(ctx context.Context, userA string, userB string) (models.Channel, error) {
	if userA == userB {
		return models.Channel{}, apperr.Validation("cannot open a direct channel with yourself")
	}
	low, high := canonicalPair(userA, userB)

	channelID, err := ids.New()
	if err != nil {
		return models.Channel{}, err
	}

	var channel models.Channel
	err = l.db.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var found int
		err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE id IN (?, ?)", low, high).Scan(&found)
		if err != nil {
			return err
		}
		if found != 2 {
			return apperr.NotFound("user not found")
		}

		channel, err = findDirectChannel(ctx, tx, low, high)
		if err == nil || !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		_, err = tx.ExecContext(ctx, "INSERT INTO channels (id, server_id, name, kind, position) VALUES (?, NULL, '', ?, 0)",
			channelID, models.ChannelDirect)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, "INSERT INTO direct_channels (user_low, user_high, channel_id) VALUES (?, ?, ?)", low, high, channelID)
		if database.IsUniqueViolation(err) {
			return errPairTaken
		} else if err != nil {
			return err
		}

		channel, err = findDirectChannel(ctx, tx, low, high)
		return err
	})
	if !errors.Is(err, errPairTaken) {
		return channel, err
	}

	// a concurrent call created the pair first and this transaction rolled
	// back, so the committed channel is the answer
	l.sugar.Debugw("direct channel created concurrently, reading it back", "userLow", low, "userHigh", high)

	ctx, cancel := l.db.WithTimeout(ctx)
	defer cancel()
	channel, err = findDirectChannel(ctx, l.db, low, high)
	if err != nil {
		return models.Channel{}, apperr.FromStore(err)
	}
	return channel, nil
}

// ListDirectChannels returns the DM channels of userID, each with the other
// participant's public profile, most recent first.
func (l *Log) ListDirectChannels(ctx context.Context, userID string) ([]models.DirectChannel, error) {
	ctx, cancel := l.db.WithTimeout(ctx)
	defer cancel()

	rows, err := l.db.QueryContext(ctx, "SELECT c.id, c.name, c.kind, c.position, c.created_at, "+identity.PublicColumns+`
		FROM direct_channels d
		JOIN channels c ON c.id = d.channel_id
		JOIN users u ON u.id = CASE WHEN d.user_low = ? THEN d.user_high ELSE d.user_low END
		WHERE d.user_low = ? OR d.user_high = ?
		ORDER BY c.created_at DESC, c.id DESC`, userID, userID, userID)
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	defer rows.Close()

	channels := make([]models.DirectChannel, 0)
	for rows.Next() {
		var dc models.DirectChannel
		var recipient identity.PublicScan
		dest := append([]any{&dc.ID, &dc.Name, &dc.Kind, &dc.Position, &dc.CreatedAt}, recipient.Dest()...)
		if err = rows.Scan(dest...); err != nil {
			return nil, apperr.FromStore(err)
		}
		dc.Recipient = recipient.User()
		channels = append(channels, dc)
	}
	if err = rows.Err(); err != nil {
		return nil, apperr.FromStore(err)
	}
	return channels, nil
}
