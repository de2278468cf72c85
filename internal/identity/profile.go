package identity

import (
	"chatcore/internal/apperr"
	"chatcore/internal/models"
	"chatcore/internal/validator"
	"context"
	"database/sql"
	"errors"
)

// ProfileUpdate carries the fields a user may change on their own profile.
// Nil fields are left as they are.
type ProfileUpdate struct {
	Avatar *string `json:"avatar" validate:"omitnil,max=512"`
	Banner *string `json:"banner" validate:"omitnil,max=512"`
	Bio    *string `json:"bio" validate:"omitnil,max=190"`
	Theme  *string `json:"theme" validate:"omitnil,oneof=dark light"`
	Locale *string `json:"locale" validate:"omitnil,locale"`
}

func (d *Directory) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (models.User, error) {
	if err := validator.Struct(update); err != nil {
		return models.User{}, err
	}

	err := d.db.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := userExists(ctx, tx, userID); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `UPDATE users SET
			avatar = COALESCE(?, avatar),
			banner = COALESCE(?, banner),
			bio = COALESCE(?, bio)
			WHERE id = ?`, update.Avatar, update.Banner, update.Bio, userID)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `UPDATE user_settings SET
			theme = COALESCE(?, theme),
			locale = COALESCE(?, locale)
			WHERE user_id = ?`, update.Theme, update.Locale, userID)
		return err
	})
	if err != nil {
		return models.User{}, err
	}

	return d.getAccount(ctx, userID)
}

func (d *Directory) SetStatus(ctx context.Context, userID string, status models.UserStatus) (models.User, error) {
	if !status.Valid() {
		return models.User{}, apperr.Validation("status must be one of online, offline, idle, dnd")
	}

	err := d.db.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := userExists(ctx, tx, userID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "UPDATE users SET status = ? WHERE id = ?", status, userID)
		return err
	})
	if err != nil {
		return models.User{}, err
	}

	return d.getAccount(ctx, userID)
}

// GetUser returns the public profile of any user.
func (d *Directory) GetUser(ctx context.Context, userID string) (models.PublicUser, error) {
	ctx, cancel := d.db.WithTimeout(ctx)
	defer cancel()

	var scan PublicScan
	err := d.db.QueryRowContext(ctx, "SELECT "+PublicColumns+" FROM users u WHERE u.id = ?", userID).Scan(scan.Dest()...)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PublicUser{}, apperr.NotFound("user not found")
	} else if err != nil {
		return models.PublicUser{}, apperr.FromStore(err)
	}
	return scan.User(), nil
}

func userExists(ctx context.Context, tx *sql.Tx, userID string) error {
	var exists bool
	err := tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)", userID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.NotFound("user not found")
	}
	return nil
}
