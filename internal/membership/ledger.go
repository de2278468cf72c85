// Package membership owns servers, their channels and who belongs to them.
package membership

import (
	"chatcore/internal/apperr"
	"chatcore/internal/database"
	"chatcore/internal/identity"
	"chatcore/internal/ids"
	"chatcore/internal/models"
	"context"
	"database/sql"
	"errors"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	maxServerNameLength  = 100
	maxChannelNameLength = 32
	maxIconLength        = 512
)

type Ledger struct {
	db    *database.DB
	sugar *zap.SugaredLogger
}

func NewLedger(db *database.DB, sugar *zap.SugaredLogger) *Ledger {
	return &Ledger{db: db, sugar: sugar}
}

var defaultChannels = []struct {
	name string
	kind models.ChannelKind
}{
	{"general", models.ChannelText},
	{"General", models.ChannelVoice},
}

// CreateServer creates the server together with its default channels and
// the owner's membership.
func (l *Ledger) CreateServer(ctx context.Context, ownerID string, name string, icon string) (models.Server, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxServerNameLength {
		return models.Server{}, apperr.Validation("server name must be 1 to 100 characters")
	}
	if len(icon) > maxIconLength {
		return models.Server{}, apperr.Validation("server icon is too long")
	}

	serverID, err := ids.New()
	if err != nil {
		return models.Server{}, err
	}

	var server models.Server
	err = l.db.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var ownerExists bool
		err := tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)", ownerID).Scan(&ownerExists)
		if err != nil {
			return err
		}
		if !ownerExists {
			return apperr.NotFound("user not found")
		}

		_, err = tx.ExecContext(ctx, "INSERT INTO servers (id, owner_id, name, icon) VALUES (?, ?, ?, ?)", serverID, ownerID, name, icon)
		if err != nil {
			return err
		}

		for position, c := range defaultChannels {
			if _, err = insertChannel(ctx, tx, serverID, c.name, c.kind, position); err != nil {
				return err
			}
		}

		if _, err = l.JoinDirect(ctx, tx, serverID, ownerID); err != nil {
			return err
		}

		server, err = GetServer(ctx, tx, serverID)
		return err
	})
	if err != nil {
		return models.Server{}, err
	}

	l.sugar.Infow("server created", "serverID", server.ID, "ownerID", ownerID)
	return server, nil
}

// CreateChannel appends a channel to a server. Only the owner may do this.
func (l *Ledger) CreateChannel(ctx context.Context, callerID string, serverID string, name string, kind models.ChannelKind) (models.Channel, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxChannelNameLength {
		return models.Channel{}, apperr.Validation("channel name must be 1 to 32 characters")
	}
	if kind != models.ChannelText && kind != models.ChannelVoice {
		return models.Channel{}, apperr.Validation("channel kind must be text or voice")
	}

	var channel models.Channel
	err := l.db.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		// the row lock keeps concurrent creators from counting the same position
		var ownerID string
		err := tx.QueryRowContext(ctx, "SELECT owner_id FROM servers WHERE id = ?"+l.db.Dialect.ForUpdate, serverID).Scan(&ownerID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("server not found")
		} else if err != nil {
			return err
		}

		if ownerID != callerID {
			member, err := IsMember(ctx, tx, serverID, callerID)
			if err != nil {
				return err
			}
			if !member {
				return apperr.NotFound("server not found")
			}
			return apperr.Forbidden("only the server owner can create channels")
		}

		var position int
		err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM channels WHERE server_id = ?", serverID).Scan(&position)
		if err != nil {
			return err
		}

		channel, err = insertChannel(ctx, tx, serverID, name, kind, position)
		if database.IsUniqueViolation(err) {
			return apperr.Conflict("channel position is taken, try again")
		}
		return err
	})
	if err != nil {
		return models.Channel{}, err
	}

	l.sugar.Debugf("Channel %s created in server %s at position %d", channel.ID, serverID, channel.Position)
	return channel, nil
}

func insertChannel(ctx context.Context, tx *sql.Tx, serverID string, name string, kind models.ChannelKind, position int) (models.Channel, error) {
	channelID, err := ids.New()
	if err != nil {
		return models.Channel{}, err
	}

	_, err = tx.ExecContext(ctx, "INSERT INTO channels (id, server_id, name, kind, position) VALUES (?, ?, ?, ?, ?)",
		channelID, serverID, name, kind, position)
	if err != nil {
		return models.Channel{}, err
	}

	channel := models.Channel{ID: channelID, ServerID: serverID, Name: name, Kind: kind, Position: position}
	err = tx.QueryRowContext(ctx, "SELECT created_at FROM channels WHERE id = ?", channelID).Scan(&channel.CreatedAt)
	return channel, err
}

// ListServersForUser returns the servers userID belongs to, most recently
// joined first.
func (l *Ledger) ListServersForUser(ctx context.Context, userID string) ([]models.Server, error) {
	ctx, cancel := l.db.WithTimeout(ctx)
	defer cancel()

	rows, err := l.db.QueryContext(ctx, `SELECT s.id, s.owner_id, s.name, s.icon, s.created_at
		FROM servers s JOIN server_members m ON m.server_id = s.id
		WHERE m.user_id = ?
		ORDER BY m.joined_at DESC, s.id DESC`, userID)
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	defer rows.Close()

	servers := make([]models.Server, 0)
	for rows.Next() {
		var s models.Server
		if err = rows.Scan(&s.ID, &s.OwnerID, &s.Name, &s.Icon, &s.CreatedAt); err != nil {
			return nil, apperr.FromStore(err)
		}
		servers = append(servers, s)
	}
	if err = rows.Err(); err != nil {
		return nil, apperr.FromStore(err)
	}
	return servers, nil
}

// GetServerDetail returns a server with its channels and members. Servers
// the caller does not belong to are reported as not found.
func (l *Ledger) GetServerDetail(ctx context.Context, callerID string, serverID string) (models.ServerDetail, error) {
	var detail models.ServerDetail
	err := l.db.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		server, err := GetServer(ctx, tx, serverID)
		if err != nil {
			return err
		}

		member, err := IsMember(ctx, tx, serverID, callerID)
		if err != nil {
			return err
		}
		if !member {
			return apperr.NotFound("server not found")
		}

		channels, err := listChannels(ctx, tx, serverID)
		if err != nil {
			return err
		}

		members, err := listMembers(ctx, tx, serverID)
		if err != nil {
			return err
		}

		detail = models.ServerDetail{Server: server, Channels: channels, Members: members}
		return nil
	})
	return detail, err
}

func listChannels(ctx context.Context, q database.Queryer, serverID string) ([]models.Channel, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, server_id, name, kind, position, created_at
		FROM channels WHERE server_id = ? ORDER BY position`, serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	channels := make([]models.Channel, 0)
	for rows.Next() {
		var c models.Channel
		if err = rows.Scan(&c.ID, &c.ServerID, &c.Name, &c.Kind, &c.Position, &c.CreatedAt); err != nil {
			return nil, err
		}
		channels = append(channels, c)
	}
	return channels, rows.Err()
}

func listMembers(ctx context.Context, q database.Queryer, serverID string) ([]models.PublicUser, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+identity.PublicColumns+` FROM server_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.server_id = ?
		ORDER BY m.joined_at, u.id`, serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]models.PublicUser, 0)
	for rows.Next() {
		var scan identity.PublicScan
		if err = rows.Scan(scan.Dest()...); err != nil {
			return nil, err
		}
		members = append(members, scan.User())
	}
	return members, rows.Err()
}

// JoinDirect adds userID to the server inside tx. An existing membership is
// a conflict and leaves nothing changed.
func (l *Ledger) JoinDirect(ctx context.Context, tx *sql.Tx, serverID string, userID string) (models.Membership, error) {
	member, err := IsMember(ctx, tx, serverID, userID)
	if err != nil {
		return models.Membership{}, err
	}
	if member {
		return models.Membership{}, apperr.Conflict("already a member")
	}

	_, err = tx.ExecContext(ctx, "INSERT INTO server_members (server_id, user_id) VALUES (?, ?)", serverID, userID)
	if database.IsUniqueViolation(err) {
		return models.Membership{}, apperr.Conflict("already a member")
	} else if err != nil {
		return models.Membership{}, err
	}

	membership := models.Membership{ServerID: serverID, UserID: userID}
	err = tx.QueryRowContext(ctx, "SELECT joined_at FROM server_members WHERE server_id = ? AND user_id = ?", serverID, userID).
		Scan(&membership.JoinedAt)
	return membership, err
}

func IsMember(ctx context.Context, q database.Queryer, serverID string, userID string) (bool, error) {
	var member bool
	err := q.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM server_members WHERE server_id = ? AND user_id = ?)", serverID, userID).
		Scan(&member)
	return member, err
}

func MemberCount(ctx context.Context, q database.Queryer, serverID string) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM server_members WHERE server_id = ?", serverID).Scan(&count)
	return count, err
}

func GetServer(ctx context.Context, q database.Queryer, serverID string) (models.Server, error) {
	var s models.Server
	err := q.QueryRowContext(ctx, "SELECT id, owner_id, name, icon, created_at FROM servers WHERE id = ?", serverID).
		Scan(&s.ID, &s.OwnerID, &s.Name, &s.Icon, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Server{}, apperr.NotFound("server not found")
	}
	return s, err
}
