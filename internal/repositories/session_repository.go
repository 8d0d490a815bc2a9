package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"portal-service/internal/session"
)

type SessionRepository interface {
	session.TokenStore
	Count(ctx context.Context) (int, error)
}

type sessionRepository struct {
	db *sqlx.DB
}

type sessionRow struct {
	ViewerID string `db:"viewer_id"`
	Token    string `db:"token"`
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Save(ctx context.Context, sessionID string, rec session.Record) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
INSERT INTO browser_sessions (session_id, viewer_id, token, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (session_id) DO UPDATE SET
	viewer_id = excluded.viewer_id,
	token = excluded.token,
	updated_at = excluded.updated_at
`), sessionID, rec.ViewerID, rec.Token, time.Now().UTC())
	return err
}

func (r *sessionRepository) Load(ctx context.Context, sessionID string) (session.Record, error) {
	var row sessionRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT viewer_id, token FROM browser_sessions WHERE session_id=?`), sessionID)
	if err != nil {
		return session.Record{}, err
	}
	return session.Record{ViewerID: row.ViewerID, Token: row.Token}, nil
}

func (r *sessionRepository) Delete(ctx context.Context, sessionID string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM browser_sessions WHERE session_id=?`), sessionID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *sessionRepository) Revoke(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM browser_sessions WHERE token=?`), token)
	return err
}

func (r *sessionRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM browser_sessions`)
	return count, err
}
