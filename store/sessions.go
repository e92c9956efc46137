package store

import (
	"context"

	"el-store/model"
)

func (s *PostgresStore) CreateSession(ctx context.Context, sess model.Session) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, login, role, expires_at) VALUES ($1, $2, $3, $4, $5)`,
		sess.ID, sess.UserID, sess.Login, string(sess.Role), sess.ExpiresAt)
	return mapErr(err)
}

// GetSession returns a live session. Expired sessions are reported as ErrNotFound.
func (s *PostgresStore) GetSession(ctx context.Context, id string) (model.Session, error) {
	var sess model.Session
	var role string
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, user_id, login, role, expires_at FROM sessions WHERE id = $1 AND expires_at > now()`, id,
	).Scan(&sess.ID, &sess.UserID, &sess.Login, &role, &sess.ExpiresAt)
	if err != nil {
		return model.Session{}, mapErr(err)
	}
	sess.Role = model.Role(role)
	return sess, nil
}

func (s *PostgresStore) DeleteSession(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (s *PostgresStore) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
