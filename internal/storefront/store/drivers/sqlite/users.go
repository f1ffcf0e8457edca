package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/storefront/internal/storefront/domain"
	"github.com/aussiebroadwan/storefront/internal/storefront/store"
)

const userColumns = `id, name, email, password_hash, role, avatar_public_id, avatar_url,
	reset_token_hash, reset_token_expires_at, created_at, updated_at`

type usersRepo struct {
	db *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u                    domain.User
		role                 string
		resetHash            sql.NullString
		resetExpires         sql.NullInt64
		createdAt, updatedAt int64
	)
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role,
		&u.Avatar.PublicID, &u.Avatar.URL,
		&resetHash, &resetExpires, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}

	u.Role = domain.Role(role)
	u.ResetTokenHash = mapNullString(resetHash)
	u.ResetTokenExpiresAt = mapNullMillis(resetExpires)
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}
	if u.Role == "" {
		u.Role = domain.RoleUser
	}

	var resetHash, resetExpires any
	if u.ResetTokenHash != "" && u.ResetTokenExpiresAt != nil {
		resetHash, resetExpires = u.ResetTokenHash, toMillis(*u.ResetTokenExpiresAt)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, domain.NormalizeEmail(u.Email), u.PasswordHash, string(u.Role),
		u.Avatar.PublicID, u.Avatar.URL,
		resetHash, resetExpires, toMillis(u.CreatedAt), toMillis(u.UpdatedAt),
	)
	return mapConstraint(err)
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`,
		domain.NormalizeEmail(email))
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByResetTokenHash(ctx context.Context, hash string, now time.Time) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE reset_token_hash = ? AND reset_token_expires_at > ?`,
		hash, toMillis(now),
	)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *usersRepo) UpdateProfile(ctx context.Context, id string, p store.ProfileUpdate) (domain.User, error) {
	var name, email, role, avatarID, avatarURL any
	if p.Name != nil {
		name = *p.Name
	}
	if p.Email != nil {
		email = domain.NormalizeEmail(*p.Email)
	}
	if p.Role != nil {
		role = string(*p.Role)
	}
	if p.Avatar != nil {
		avatarID, avatarURL = p.Avatar.PublicID, p.Avatar.URL
	}

	row := r.db.QueryRowContext(ctx, `
		UPDATE users SET
			name             = COALESCE(?, name),
			email            = COALESCE(?, email),
			role             = COALESCE(?, role),
			avatar_public_id = COALESCE(?, avatar_public_id),
			avatar_url       = COALESCE(?, avatar_url),
			updated_at       = ?
		WHERE id = ?
		RETURNING `+userColumns,
		name, email, role, avatarID, avatarURL, toMillis(time.Now()), id,
	)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapConstraint(mapNotFound(err))
	}
	return u, nil
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, toMillis(time.Now()), id,
	)
	return affectedOne(res, err)
}

func (r *usersRepo) SetResetToken(ctx context.Context, id, hash string, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET reset_token_hash = ?, reset_token_expires_at = ?, updated_at = ?
		WHERE id = ?`,
		hash, toMillis(expiresAt), toMillis(time.Now()), id,
	)
	return affectedOne(res, err)
}

func (r *usersRepo) ClearResetToken(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET reset_token_hash = NULL, reset_token_expires_at = NULL, updated_at = ?
		WHERE id = ?`,
		toMillis(time.Now()), id,
	)
	return affectedOne(res, err)
}

func (r *usersRepo) ConsumeResetToken(ctx context.Context, id, tokenHash, passwordHash string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET
			password_hash          = ?,
			reset_token_hash       = NULL,
			reset_token_expires_at = NULL,
			updated_at             = ?
		WHERE id = ? AND reset_token_hash = ? AND reset_token_expires_at > ?`,
		passwordHash, toMillis(now), id, tokenHash, toMillis(now),
	)
	return affectedOne(res, err)
}

func (r *usersRepo) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET reset_token_hash = NULL, reset_token_expires_at = NULL
		WHERE reset_token_hash IS NOT NULL AND reset_token_expires_at <= ?`,
		toMillis(now),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *usersRepo) DeleteUser(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	return affectedOne(res, err)
}

// affectedOne maps "no row matched" to store.ErrNotFound.
func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
