package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"el-store/model"

	"github.com/lib/pq"
)

const userColumns = `id, login, display_name, email, password_hash, role, created_at, updated_at`

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	var role string
	if err := row.Scan(&u.ID, &u.Login, &u.DisplayName, &u.Email, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return model.User{}, mapErr(err)
	}
	u.Role = model.Role(role)
	return u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u model.User) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Login, u.DisplayName, u.Email, u.PasswordHash, string(u.Role), u.CreatedAt, u.UpdatedAt,
	)
	return mapErr(err)
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (model.User, error) {
	return scanUser(s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetUserByLoginOrEmail matches the argument against both login and email.
func (s *PostgresStore) GetUserByLoginOrEmail(ctx context.Context, loginOrEmail string) (model.User, error) {
	return scanUser(s.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE login = $1 OR email = $1 LIMIT 1`, loginOrEmail))
}

func (s *PostgresStore) GetUsersByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UserExists(ctx context.Context, login, email string) (bool, error) {
	var exists bool
	err := s.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE login = $1 OR email = $2)`, login, email).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) AdminExists(ctx context.Context) (bool, error) {
	var exists bool
	err := s.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE role = $1)`, string(model.RoleAdmin)).Scan(&exists)
	return exists, err
}

// ListUsers returns one page of users, newest first, plus the total number of
// users matching search. search is a case-insensitive substring of login,
// display name or email.
func (s *PostgresStore) ListUsers(ctx context.Context, search string, limit, offset int) ([]model.User, int, error) {
	where := ""
	args := []any{}
	if search != "" {
		where = ` WHERE login ILIKE $1 OR display_name ILIKE $1 OR email ILIKE $1`
		args = append(args, "%"+escapeLike(search)+"%")
	}

	var total int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		userColumns, where, len(args)+1, len(args)+2)
	rows, err := s.DB.QueryContext(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

// UpdateUserRole changes the role of a user and of their live sessions.
func (s *PostgresStore) UpdateUserRole(ctx context.Context, id string, role model.Role) (model.User, error) {
	var u model.User
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		u, err = scanUser(tx.QueryRowContext(ctx,
			`UPDATE users SET role = $1, updated_at = now() WHERE id = $2 RETURNING `+userColumns, string(role), id))
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE sessions SET role = $1 WHERE user_id = $2`, string(role), id)
		return err
	})
	return u, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
