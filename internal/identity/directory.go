// Package identity owns user accounts: registration with handle
// allocation, login, session verification and profile changes.
package identity

import (
	"chatcore/internal/apperr"
	"chatcore/internal/credential"
	"chatcore/internal/database"
	"chatcore/internal/ids"
	"chatcore/internal/jwt"
	"chatcore/internal/keyValue"
	"chatcore/internal/models"
	"chatcore/internal/validator"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// how many fresh transactions Register spends on a lost discriminator race
const maxHandleAttempts = 3

var errHandleTaken = errors.New("handle taken")

const selectAccount = `SELECT u.id, u.email, u.username, u.discriminator, u.credential, u.status,
	u.avatar, u.banner, u.bio, s.theme, s.locale, u.created_at
	FROM users u JOIN user_settings s ON s.user_id = u.id`

type Directory struct {
	db          *database.DB
	credentials *credential.Store
	tokens      *jwt.Authority
	kv          *keyValue.Store
	sugar       *zap.SugaredLogger
}

// Session is a freshly issued token together with its claims.
type Session struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	Claims    jwt.UserToken `json:"-"`
}

func NewDirectory(db *database.DB, credentials *credential.Store, tokens *jwt.Authority, kv *keyValue.Store, sugar *zap.SugaredLogger) *Directory {
	return &Directory{
		db:          db,
		credentials: credentials,
		tokens:      tokens,
		kv:          kv,
		sugar:       sugar,
	}
}

type account struct {
	models.User
	credential string
}

func scanAccount(row *sql.Row) (account, error) {
	var a account
	var discriminator int
	err := row.Scan(&a.ID, &a.Email, &a.UserName, &discriminator, &a.credential, &a.Status,
		&a.Avatar, &a.Banner, &a.Bio, &a.Theme, &a.Locale, &a.CreatedAt)
	if err != nil {
		return account{}, err
	}
	a.Discriminator = FormatDiscriminator(discriminator)
	a.Handle = FormatHandle(a.UserName, discriminator)
	return a, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (d *Directory) Register(ctx context.Context, email string, username string, password string) (models.User, error) {
	email = normalizeEmail(email)

	err := validator.Struct(validator.Registration{Email: email, UserName: username, Password: password})
	if err != nil {
		return models.User{}, err
	}

	hash, err := d.credentials.Hash(password)
	if err != nil {
		return models.User{}, fmt.Errorf("hashing credential: %w", err)
	}

	userID, err := ids.New()
	if err != nil {
		return models.User{}, err
	}

	for attempt := 1; attempt <= maxHandleAttempts; attempt++ {
		user, err := d.insertUser(ctx, userID, email, username, hash)
		if errors.Is(err, errHandleTaken) {
			d.sugar.Debugw("discriminator already taken, allocating again", "username", username, "attempt", attempt)
			continue
		}
		if err != nil {
			return models.User{}, err
		}

		d.sugar.Infow("user registered", "userID", user.ID, "handle", user.Handle)
		return user, nil
	}

	return models.User{}, apperr.Conflict("no discriminator is available for this username, try again")
}

func (d *Directory) insertUser(ctx context.Context, userID string, email string, username string, hash string) (models.User, error) {
	var user models.User
	var uniqueErr error

	err := d.db.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)", email).Scan(&exists)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict("email is already registered")
		}

		discriminator, err := Allocate(ctx, tx, username)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, "INSERT INTO users (id, email, username, discriminator, credential) VALUES (?, ?, ?, ?, ?)",
			userID, email, username, discriminator, hash)
		if database.IsUniqueViolation(err) {
			uniqueErr = err
			return apperr.Conflict("registration conflict")
		} else if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, "INSERT INTO user_settings (user_id) VALUES (?)", userID)
		if err != nil {
			return err
		}

		a, err := scanAccount(tx.QueryRowContext(ctx, selectAccount+" WHERE u.id = ?", userID))
		if err != nil {
			return err
		}
		user = a.User
		return nil
	})
	if err == nil || uniqueErr == nil {
		return user, err
	}

	// a concurrent registration won; the transaction is gone, so a fresh read
	// tells whether it took the email or only the handle
	ctx, cancel := d.db.WithTimeout(ctx)
	defer cancel()

	var emailTaken bool
	if err = d.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)", email).Scan(&emailTaken); err != nil {
		return models.User{}, apperr.FromStore(err)
	}
	if emailTaken {
		return models.User{}, apperr.Conflict("email is already registered")
	}
	return models.User{}, errHandleTaken
}

func (d *Directory) Login(ctx context.Context, email string, password string, rememberMe bool) (models.User, Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return models.User{}, Session{}, apperr.InvalidCredentials(nil)
	}

	a, err := d.lookupAccount(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		d.credentials.CheckMissing(password)
		d.sugar.Debug("Login for unknown email")
		return models.User{}, Session{}, apperr.InvalidCredentials(err)
	} else if err != nil {
		return models.User{}, Session{}, apperr.FromStore(err)
	}

	if !d.credentials.Check(password, a.credential) {
		d.sugar.Debugf("Wrong password for user ID %s", a.ID)
		return models.User{}, Session{}, apperr.InvalidCredentials(nil)
	}

	var rehash string
	if d.credentials.NeedsRehash(a.credential) {
		rehash, err = d.credentials.Hash(password)
		if err != nil {
			return models.User{}, Session{}, fmt.Errorf("hashing credential: %w", err)
		}
	}

	err = d.db.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if rehash != "" {
			// only replace the credential that was just checked
			_, err := tx.ExecContext(ctx, "UPDATE users SET credential = ? WHERE id = ? AND credential = ?", rehash, a.ID, a.credential)
			if err != nil {
				return err
			}
		}

		_, err := tx.ExecContext(ctx, "UPDATE users SET status = ? WHERE id = ?", models.StatusOnline, a.ID)
		return err
	})
	if err != nil {
		return models.User{}, Session{}, err
	}
	if rehash != "" {
		d.sugar.Infow("credential migrated to current scheme", "userID", a.ID)
	}

	token, claims, err := d.tokens.CreateToken(rememberMe, a.ID)
	if err != nil {
		return models.User{}, Session{}, fmt.Errorf("issuing token: %w", err)
	}

	user := a.User
	user.Status = models.StatusOnline
	return user, Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, Claims: claims}, nil
}

func (d *Directory) lookupAccount(ctx context.Context, email string) (account, error) {
	ctx, cancel := d.db.WithTimeout(ctx)
	defer cancel()
	return scanAccount(d.db.QueryRowContext(ctx, selectAccount+" WHERE u.email = ?", email))
}

func revokedKey(tokenID string) string {
	return "revoked_token:" + tokenID
}

// Verify resolves a session token to the current user record.
func (d *Directory) Verify(ctx context.Context, token string) (models.User, error) {
	claims, err := d.verifyClaims(ctx, token)
	if err != nil {
		return models.User{}, err
	}

	user, err := d.getAccount(ctx, claims.UserID)
	if apperr.Is(err, apperr.KindNotFound) {
		return models.User{}, apperr.Wrap(apperr.KindAuth, "invalid session", err)
	}
	return user, err
}

func (d *Directory) verifyClaims(ctx context.Context, token string) (jwt.UserToken, error) {
	claims, err := d.tokens.VerifyToken(token)
	if err != nil {
		d.sugar.Debug(err)
		return jwt.UserToken{}, apperr.Wrap(apperr.KindAuth, "invalid session", err)
	}

	revoked, err := d.kv.Get(ctx, revokedKey(claims.ID))
	if err != nil {
		d.sugar.Error(err)
		return jwt.UserToken{}, apperr.FromStore(err)
	}
	if revoked != "" {
		return jwt.UserToken{}, apperr.New(apperr.KindAuth, "invalid session")
	}
	return claims, nil
}

// Logout revokes token until it would have expired anyway and marks its
// user offline.
func (d *Directory) Logout(ctx context.Context, token string) error {
	claims, err := d.verifyClaims(ctx, token)
	if err != nil {
		return err
	}

	if err = d.kv.Set(ctx, revokedKey(claims.ID), claims.UserID, time.Until(claims.ExpiresAt.Time)); err != nil {
		d.sugar.Error(err)
		return apperr.FromStore(err)
	}

	ctx, cancel := d.db.WithTimeout(ctx)
	defer cancel()
	_, err = d.db.ExecContext(ctx, "UPDATE users SET status = ? WHERE id = ?", models.StatusOffline, claims.UserID)
	if err != nil {
		return apperr.FromStore(err)
	}
	return nil
}

func (d *Directory) getAccount(ctx context.Context, userID string) (models.User, error) {
	ctx, cancel := d.db.WithTimeout(ctx)
	defer cancel()

	a, err := scanAccount(d.db.QueryRowContext(ctx, selectAccount+" WHERE u.id = ?", userID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, apperr.NotFound("user not found")
	} else if err != nil {
		return models.User{}, apperr.FromStore(err)
	}
	return a.User, nil
}
