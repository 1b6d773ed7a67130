package auth

import (
	"context"
	"database/sql"
	"time"
)

// Queries はユーザーテーブルへのクエリ実行オブジェクト。
type Queries struct {
	db *sql.DB
}

// NewQueries は新しいクエリ実行オブジェクトを生成する。
func NewQueries(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// User はusersテーブルの1行を表す。
type User struct {
	// ID はユーザーの一意識別子。
	ID string
	// Email はメールアドレス。
	Email string
	// DisplayName は表示名。
	DisplayName string
	// CreatedAt は作成日時。
	CreatedAt time.Time
	// LastLoginAt は最終ログイン日時。
	LastLoginAt time.Time
}

// CreateUserParams はCreateUserのパラメータ。
type CreateUserParams struct {
	ID          string
	Email       string
	DisplayName string
}

// CreateUser は新しいユーザーを作成する。
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO users (id, email, display_name) VALUES (?, ?, ?)",
		arg.ID, arg.Email, arg.DisplayName,
	)
	return err
}

// GetUserByEmail はメールアドレスでユーザーを検索する。
// 見つからない場合は sql.ErrNoRows を返す。
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT id, email, display_name, created_at, last_login_at FROM users WHERE email = ?",
		email,
	)

	var u User
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.CreatedAt, &u.LastLoginAt)
	return u, err
}

// UpdateLastLogin は最終ログイン日時を現在時刻に更新する。
func (q *Queries) UpdateLastLogin(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx,
		"UPDATE users SET last_login_at = datetime('now') WHERE id = ?",
		id,
	)
	return err
}
