// Package messages appends and reads channel messages and manages direct
// message channels.
package messages

import (
	"chatcore/internal/apperr"
	"chatcore/internal/database"
	"chatcore/internal/identity"
	"chatcore/internal/ids"
	"chatcore/internal/membership"
	"chatcore/internal/models"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	DefaultLimit     = 50
	MaxLimit         = 100
	MaxContentLength = 2000
)

const selectMessage = "SELECT m.id, m.channel_id, m.author_id, m.content, m.created_at, " + identity.PublicColumns + `
	FROM messages m JOIN users u ON u.id = m.author_id`

type Log struct {
	db    *database.DB
	sugar *zap.SugaredLogger
}

func NewLog(db *database.DB, sugar *zap.SugaredLogger) *Log {
	return &Log{db: db, sugar: sugar}
}

type channelInfo struct {
	id       string
	serverID sql.NullString
	kind     models.ChannelKind
}

func lookupChannel(ctx context.Context, q database.Queryer, channelID string) (channelInfo, error) {
	c := channelInfo{id: channelID}
	err := q.QueryRowContext(ctx, "SELECT server_id, kind FROM channels WHERE id = ?", channelID).Scan(&c.serverID, &c.kind)
	return c, err
}

// authorize checks that userID reaches the channel, through a server
// membership or as one of the two DM participants.
func authorize(ctx context.Context, q database.Queryer, c channelInfo, userID string) error {
	var allowed bool
	var err error

	if c.serverID.Valid {
		allowed, err = membership.IsMember(ctx, q, c.serverID.String, userID)
	} else {
		err = q.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM direct_channels WHERE channel_id = ? AND (user_low = ? OR user_high = ?))",
			c.id, userID, userID).Scan(&allowed)
	}
	if err != nil {
		return err
	}
	if !allowed {
		return apperr.Forbidden("you do not have access to this channel")
	}
	return nil
}

func scanMessage(scan func(dest ...any) error) (models.Message, error) {
	var m models.Message
	var author identity.PublicScan
	dest := append([]any{&m.ID, &m.ChannelID, &m.AuthorID, &m.Content, &m.CreatedAt}, author.Dest()...)
	if err := scan(dest...); err != nil {
		return models.Message{}, err
	}
	m.Author = author.User()
	return m, nil
}

// Send appends a message to a channel. It is not idempotent: every
// successful call stores a new message.
func (l *Log) Send(ctx context.Context, channelID string, authorID string, content string) (models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return models.Message{}, apperr.Validation("message content is empty")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return models.Message{}, apperr.Validation("message content is longer than 2000 characters")
	}

	messageID, err := ids.New()
	if err != nil {
		return models.Message{}, err
	}

	var message models.Message
	err = l.db.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		c, err := lookupChannel(ctx, tx, channelID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.Validation("channel does not exist")
		} else if err != nil {
			return err
		}
		if c.kind == models.ChannelVoice {
			return apperr.Validation("voice channels do not take messages")
		}

		if err = authorize(ctx, tx, c, authorID); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, "INSERT INTO messages (id, channel_id, author_id, content) VALUES (?, ?, ?, ?)",
			messageID, channelID, authorID, content)
		if err != nil {
			return err
		}

		message, err = scanMessage(tx.QueryRowContext(ctx, selectMessage+" WHERE m.id = ?", messageID).Scan)
		return err
	})
	if err != nil {
		return models.Message{}, err
	}

	l.sugar.Debugf("Message %s sent to channel %s by user %s", message.ID, channelID, authorID)
	return message, nil
}

// List returns up to limit of the newest messages in a channel, newest
// first.
func (l *Log) List(ctx context.Context, channelID string, callerID string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		return nil, apperr.Validation(fmt.Sprintf("limit must be at most %d", MaxLimit))
	}

	messages := make([]models.Message, 0)
	err := l.db.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		c, err := lookupChannel(ctx, tx, channelID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("channel not found")
		} else if err != nil {
			return err
		}

		if err = authorize(ctx, tx, c, callerID); err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx, selectMessage+" WHERE m.channel_id = ? ORDER BY m.seq DESC LIMIT ?", channelID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			m, err := scanMessage(rows.Scan)
			if err != nil {
				return err
			}
			messages = append(messages, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}
