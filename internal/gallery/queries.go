package gallery

import (
	"context"
	"database/sql"
	"time"
)

// Queries はphotosテーブルへのクエリ実行オブジェクト。
type Queries struct {
	db *sql.DB
}

// NewQueries は新しいクエリ実行オブジェクトを生成する。
func NewQueries(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// Photo はphotosテーブルの1行を表す。
type Photo struct {
	// ID は写真メタデータの一意識別子。
	ID string
	// StorageKey はメディアサービスのBlobを参照するストレージキー。
	StorageKey string
	// Filename はメディアサービスが確定したファイル名。
	Filename string
	// OriginalName はクライアントが申告した元のファイル名。
	OriginalName string
	// ContentType はファイルのMIMEタイプ。
	ContentType string
	// Size はファイルサイズ（バイト）。
	Size int64
	// UserID は所有者のユーザーID。
	UserID string
	// UploadDate はアップロード日時（UTC）。
	UploadDate time.Time
}

// CreatePhotoParams はCreatePhotoのパラメータ。
type CreatePhotoParams struct {
	ID           string
	StorageKey   string
	Filename     string
	OriginalName string
	ContentType  string
	Size         int64
	UserID       string
	UploadDate   time.Time
}

// CreatePhoto は新しい写真メタデータを作成する。
func (q *Queries) CreatePhoto(ctx context.Context, arg CreatePhotoParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO photos (id, storage_key, filename, original_name, content_type, size, user_id, upload_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		arg.ID, arg.StorageKey, arg.Filename, arg.OriginalName, arg.ContentType, arg.Size, arg.UserID, arg.UploadDate,
	)
	return err
}

// ListPhotosByUserParams はListPhotosByUserのパラメータ。
type ListPhotosByUserParams struct {
	UserID string
	Limit  int64
	Skip   int64
}

// ListPhotosByUser は所有者の写真メタデータを新しい順に取得する。
func (q *Queries) ListPhotosByUser(ctx context.Context, arg ListPhotosByUserParams) ([]Photo, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, storage_key, filename, original_name, content_type, size, user_id, upload_date
		FROM photos
		WHERE user_id = ?
		ORDER BY upload_date DESC, rowid DESC
		LIMIT ? OFFSET ?`,
		arg.UserID, arg.Limit, arg.Skip,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var photos []Photo
	for rows.Next() {
		var p Photo
		if err := rows.Scan(&p.ID, &p.StorageKey, &p.Filename, &p.OriginalName, &p.ContentType, &p.Size, &p.UserID, &p.UploadDate); err != nil {
			return nil, err
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

// CountPhotosByUser は所有者の写真メタデータの総数を返す。
// ページサイズに関係なく全件数を返す。
func (q *Queries) CountPhotosByUser(ctx context.Context, userID string) (int64, error) {
	row := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM photos WHERE user_id = ?", userID)

	var total int64
	err := row.Scan(&total)
	return total, err
}

// GetPhotoParams はGetPhotoのパラメータ。
type GetPhotoParams struct {
	ID     string
	UserID string
}

// GetPhoto は所有者スコープで写真メタデータを1件取得する。
// 存在しない、または所有者が異なる場合は sql.ErrNoRows を返す。
func (q *Queries) GetPhoto(ctx context.Context, arg GetPhotoParams) (Photo, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, storage_key, filename, original_name, content_type, size, user_id, upload_date
		FROM photos
		WHERE id = ? AND user_id = ?`,
		arg.ID, arg.UserID,
	)

	var p Photo
	err := row.Scan(&p.ID, &p.StorageKey, &p.Filename, &p.OriginalName, &p.ContentType, &p.Size, &p.UserID, &p.UploadDate)
	return p, err
}

// DeletePhotoParams はDeletePhotoのパラメータ。
type DeletePhotoParams struct {
	ID     string
	UserID string
}

// DeletePhoto は所有者スコープで写真メタデータを1件削除する。
func (q *Queries) DeletePhoto(ctx context.Context, arg DeletePhotoParams) error {
	_, err := q.db.ExecContext(ctx,
		"DELETE FROM photos WHERE id = ? AND user_id = ?",
		arg.ID, arg.UserID,
	)
	return err
}
