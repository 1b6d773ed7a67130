package gateway

import (
	"context"
	"fmt"
	"net/url"

	"github.com/nao1215/photure/pkg/httpclient"
)

// Identity は認証サービスが返す検証済みの呼び出し元。
// Gatewayはこれを永続化せず、リクエストのスコープ付けにのみ使用する。
type Identity struct {
	// UserID は検証済みユーザーの一意識別子。
	UserID string `json:"user_id"`
	// SessionID はログインセッションの識別子。存在しない場合は空。
	SessionID string `json:"session_id"`
}

// StoredMedia はメディアサービスへのアップロード結果。
// 以降のメタデータはクライアント申告値ではなく、この値が正となる。
type StoredMedia struct {
	// StorageKey はメディアサービスが採番したBlobの識別子。
	StorageKey string `json:"storage_key"`
	// Filename はメディアサービスが確定したファイル名。
	Filename string `json:"filename"`
	// ContentType はファイルのMIMEタイプ。
	ContentType string `json:"content_type"`
	// Size はファイルサイズ（バイト）。
	Size int64 `json:"size"`
}

// PhotoRecord はギャラリーサービスが保持する写真メタデータ。
type PhotoRecord struct {
	// ID は写真メタデータの一意識別子。
	ID string `json:"id"`
	// Filename はメディアサービスが確定したファイル名。
	Filename string `json:"filename"`
	// OriginalName はクライアントが申告した元のファイル名。
	OriginalName string `json:"original_name"`
	// ContentType はファイルのMIMEタイプ。
	ContentType string `json:"content_type"`
	// Size はファイルサイズ（バイト）。
	Size int64 `json:"size"`
	// UserID は所有者のユーザーID。
	UserID string `json:"user_id"`
	// UploadDate はアップロード日時。
	UploadDate string `json:"upload_date"`
	// StorageKey はメディアサービスのBlobを参照するストレージキー。
	StorageKey string `json:"storage_key"`
}

// HydratedPhoto はPhotoRecordに取得用URLを付与したレスポンス専用の形。
// URLはIDから導出され、永続化されない。
type HydratedPhoto struct {
	PhotoRecord
	// URL は写真データの取得先パス。
	URL string `json:"url"`
}

// IdentityVerifier は認証サービスへのインターフェース。
type IdentityVerifier interface {
	// Verify はBearer認証情報を検証し、検証済みの呼び出し元を返す。
	Verify(ctx context.Context, authorization string) (Identity, error)
}

// MediaStore はメディアサービスへのインターフェース。
type MediaStore interface {
	// Upload はバイナリを保存し、採番されたストレージキーを含む結果を返す。
	Upload(ctx context.Context, filename, contentType string, data []byte) (StoredMedia, error)
	// Fetch はストレージキーでバイナリを取得する。
	// downloadNameとcontentTypeは表示ヒントとして渡す。
	Fetch(ctx context.Context, storageKey, downloadName, contentType string) ([]byte, error)
	// Delete はストレージキーでBlobを削除する。
	// 存在しないキーの削除は404エラーになる（冪等）。
	Delete(ctx context.Context, storageKey string) error
}

// CreateRecordParams はGalleryCatalog.Createのパラメータ。
type CreateRecordParams struct {
	StorageKey   string `json:"storage_key"`
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name"`
	ContentType  string `json:"content_type"`
	Size         int64  `json:"size"`
	UserID       string `json:"user_id"`
}

// GalleryCatalog はギャラリーサービスへのインターフェース。
// すべての読み書きは所有者スコープで行う。
type GalleryCatalog interface {
	// Create は写真メタデータを作成し、IDが採番されたレコードを返す。
	Create(ctx context.Context, params CreateRecordParams) (PhotoRecord, error)
	// List は所有者の写真メタデータを新しい順に取得する。
	// totalは所有者の全件数で、ページサイズとは独立している。
	List(ctx context.Context, owner string, skip, limit int64) (photos []PhotoRecord, total int64, err error)
	// Get は所有者スコープで写真メタデータを1件取得する。
	Get(ctx context.Context, id, owner string) (PhotoRecord, error)
	// Delete は所有者スコープで写真メタデータを1件削除し、
	// 参照していたストレージキーを返す。
	Delete(ctx context.Context, id, owner string) (storageKey string, err error)
}

// authClient はHTTP経由のIdentityVerifier実装。
type authClient struct {
	client *httpclient.Client
}

// newAuthClient は認証サービスへのクライアントを生成する。
func newAuthClient(client *httpclient.Client) IdentityVerifier {
	return &authClient{client: client}
}

// Verify は認証サービスの /verify を呼び出す。
func (a *authClient) Verify(ctx context.Context, authorization string) (Identity, error) {
	ctx = httpclient.WithAuthorization(ctx, authorization)

	var identity Identity
	if err := a.client.PostJSON(ctx, "/verify", nil, &identity); err != nil {
		return Identity{}, err
	}
	return identity, nil
}

// mediaClient はHTTP経由のMediaStore実装。
type mediaClient struct {
	client *httpclient.Client
}

// newMediaClient はメディアサービスへのクライアントを生成する。
func newMediaClient(client *httpclient.Client) MediaStore {
	return &mediaClient{client: client}
}

// Upload はメディアサービスの /media/upload にマルチパートでPOSTする。
func (m *mediaClient) Upload(ctx context.Context, filename, contentType string, data []byte) (StoredMedia, error) {
	var stored StoredMedia
	if err := m.client.PostMultipartFile(ctx, "/media/upload", "file", filename, contentType, data, &stored); err != nil {
		return StoredMedia{}, err
	}
	return stored, nil
}

// Fetch はメディアサービスの /media/{storage_key} からバイナリを取得する。
func (m *mediaClient) Fetch(ctx context.Context, storageKey, downloadName, contentType string) ([]byte, error) {
	query := url.Values{}
	if downloadName != "" {
		query.Set("download_name", downloadName)
	}
	if contentType != "" {
		query.Set("content_type", contentType)
	}

	path := "/media/" + url.PathEscape(storageKey)
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	return m.client.GetBytes(ctx, path)
}

// Delete はメディアサービスの /media/{storage_key} にDELETEを送信する。
func (m *mediaClient) Delete(ctx context.Context, storageKey string) error {
	return m.client.DeleteJSON(ctx, "/media/"+url.PathEscape(storageKey), nil)
}

// galleryClient はHTTP経由のGalleryCatalog実装。
type galleryClient struct {
	client *httpclient.Client
}

// newGalleryClient はギャラリーサービスへのクライアントを生成する。
func newGalleryClient(client *httpclient.Client) GalleryCatalog {
	return &galleryClient{client: client}
}

// Create はギャラリーサービスの /gallery/photos にPOSTする。
func (g *galleryClient) Create(ctx context.Context, params CreateRecordParams) (PhotoRecord, error) {
	var record PhotoRecord
	if err := g.client.PostJSON(ctx, "/gallery/photos", params, &record); err != nil {
		return PhotoRecord{}, err
	}
	return record, nil
}

// listResponse はギャラリーサービスの一覧レスポンス。
type listResponse struct {
	Photos []PhotoRecord `json:"photos"`
	Total  int64         `json:"total"`
}

// List はギャラリーサービスの /gallery/photos を所有者スコープで呼び出す。
func (g *galleryClient) List(ctx context.Context, owner string, skip, limit int64) ([]PhotoRecord, int64, error) {
	ctx = httpclient.WithUserID(ctx, owner)

	var resp listResponse
	path := fmt.Sprintf("/gallery/photos?skip=%d&limit=%d", skip, limit)
	if err := g.client.GetJSON(ctx, path, &resp); err != nil {
		return nil, 0, err
	}
	return resp.Photos, resp.Total, nil
}

// Get はギャラリーサービスの /gallery/photos/{id} を所有者スコープで呼び出す。
func (g *galleryClient) Get(ctx context.Context, id, owner string) (PhotoRecord, error) {
	ctx = httpclient.WithUserID(ctx, owner)

	var record PhotoRecord
	if err := g.client.GetJSON(ctx, "/gallery/photos/"+url.PathEscape(id), &record); err != nil {
		return PhotoRecord{}, err
	}
	return record, nil
}

// deleteResponse はギャラリーサービスの削除レスポンス。
type deleteResponse struct {
	StorageKey string `json:"storage_key"`
	Deleted    bool   `json:"deleted"`
}

// Delete はギャラリーサービスの /gallery/photos/{id} にDELETEを送信する。
func (g *galleryClient) Delete(ctx context.Context, id, owner string) (string, error) {
	ctx = httpclient.WithUserID(ctx, owner)

	var resp deleteResponse
	if err := g.client.DeleteJSON(ctx, "/gallery/photos/"+url.PathEscape(id), &resp); err != nil {
		return "", err
	}
	return resp.StorageKey, nil
}
