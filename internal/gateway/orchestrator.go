package gateway

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// compensateTimeout は補償アクション（孤児Blobの削除）のタイムアウト。
// 補償は元のリクエストから切り離されたコンテキストで実行する。
const compensateTimeout = 30 * time.Second

// エラーメッセージはAPIの契約としてクライアントに返す固定の英語文言。
const (
	msgMissingAuthorization = "Missing Authorization header"
	msgAuthUnavailable      = "Auth service unavailable"
	msgMediaUnavailable     = "Media service unavailable"
	msgGalleryUnavailable   = "Gallery service unavailable"
	msgOnlyImages           = "Only image files are allowed"
)

// Orchestrator は3つのリーフサービスへの呼び出しを順序付け、
// アップロード・一覧・取得・削除の4操作を実装する。
//
// Blobストアとメタデータカタログは共有トランザクションを持たないため、
// 呼び出し順序と補償アクションで両者の整合を保つ。
// メディア → ギャラリーの順で書き込むことで、失敗時の補償は常に
// 「どこからも参照されていないBlobの削除」になり、冪等かつ安全となる。
// ギャラリーのレコードがどのBlobが有効かの真実の情報源であるため、
// カタログへの書き込みは必ず最後に行う。
type Orchestrator struct {
	// verifier は認証サービスへのクライアント。
	verifier IdentityVerifier
	// media はメディアサービスへのクライアント。
	media MediaStore
	// gallery はギャラリーサービスへのクライアント。
	gallery GalleryCatalog
}

// NewOrchestrator は新しいオーケストレータを生成する。
// 各リーフへのクライアントは注入され、テストではフェイクに差し替えられる。
func NewOrchestrator(verifier IdentityVerifier, media MediaStore, gallery GalleryCatalog) *Orchestrator {
	return &Orchestrator{
		verifier: verifier,
		media:    media,
		gallery:  gallery,
	}
}

// verifyIdentity は認証情報を検証し、検証済みの呼び出し元を返す。
// 認証情報がない場合はリーフを呼ばずに401で失敗する（fail closed）。
// 認証サービスに到達できない場合は、拒否（401）とは区別して503を返す。
func (o *Orchestrator) verifyIdentity(ctx context.Context, authorization string) (Identity, *Error) {
	if authorization == "" {
		return Identity{}, newError(KindAuthentication, msgMissingAuthorization)
	}

	identity, err := o.verifier.Verify(ctx, authorization)
	if err != nil {
		return Identity{}, leafError(err, msgAuthUnavailable)
	}
	return identity, nil
}

// UploadInput はアップロード操作の入力。
type UploadInput struct {
	// Authorization はクライアントのBearer認証情報。
	Authorization string
	// Filename はクライアントが申告したファイル名。
	Filename string
	// ContentType はクライアントが申告したMIMEタイプ。
	ContentType string
	// Data はファイルの全バイト列。
	Data []byte
}

// Upload は1つのアップロードを整合の取れたPhotoRecordに変換する。
//
// 検証 → メディア保存 → メタデータ作成の順に進み、メタデータ作成に
// 失敗した場合は保存済みのBlobに対する補償削除を発行する。
// 失敗時にBlobを参照しないレコード（不整合）を残すことはない。
func (o *Orchestrator) Upload(ctx context.Context, in UploadInput) (HydratedPhoto, error) {
	identity, oerr := o.verifyIdentity(ctx, in.Authorization)
	if oerr != nil {
		return HydratedPhoto{}, oerr
	}

	// 画像以外はリーフを呼ぶ前にローカルで拒否する。
	if !strings.HasPrefix(strings.ToLower(in.ContentType), "image/") {
		return HydratedPhoto{}, newError(KindValidation, msgOnlyImages)
	}

	// Blobを先に保存する。ここで失敗してもレコードは未作成なので
	// 補償は不要（ぶら下がり参照は発生し得ない）。
	stored, err := o.media.Upload(ctx, in.Filename, in.ContentType, in.Data)
	if err != nil {
		return HydratedPhoto{}, leafError(err, msgMediaUnavailable)
	}

	originalName := in.Filename
	if originalName == "" {
		originalName = stored.Filename
	}

	record, err := o.gallery.Create(ctx, CreateRecordParams{
		StorageKey:   stored.StorageKey,
		Filename:     stored.Filename,
		OriginalName: originalName,
		ContentType:  stored.ContentType,
		Size:         stored.Size,
		UserID:       identity.UserID,
	})
	if err != nil {
		// 補償: 保存済みのBlobが孤児にならないよう削除を発行する。
		// レスポンスは待たず、補償自体の失敗はログにのみ残す。
		o.compensateUpload(stored.StorageKey)
		return HydratedPhoto{}, leafError(err, msgGalleryUnavailable)
	}

	return hydrate(record), nil
}

// compensateUpload は保存済みBlobの補償削除をバックグラウンドで発行する。
// クライアントの切断有無にかかわらず実行するため、元のリクエストから
// 切り離したコンテキストを使用する。goroutineの起動はレスポンス送信前に
// 完了している。
func (o *Orchestrator) compensateUpload(storageKey string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), compensateTimeout)
		defer cancel()

		if err := o.media.Delete(ctx, storageKey); err != nil {
			log.Printf("[Compensate] 孤児Blobの削除に失敗: storage_key=%s, error=%v", storageKey, err)
			return
		}
		log.Printf("[Compensate] 孤児Blobを削除しました: storage_key=%s", storageKey)
	}()
}

// ListResult は一覧操作の結果。
type ListResult struct {
	// Photos は取得用URLを付与した写真メタデータ。ギャラリーが返した
	// 新しい順をそのまま保持する。
	Photos []HydratedPhoto `json:"photos"`
	// Total は所有者の写真メタデータの総数。ページサイズとは独立している。
	Total int64 `json:"total"`
}

// List は所有者の写真メタデータを新しい順にページ取得する。
// ページネーション境界はいかなるリーフも呼ぶ前に検証する。
func (o *Orchestrator) List(ctx context.Context, authorization string, skip, limit int64) (ListResult, error) {
	if skip < 0 {
		return ListResult{}, newError(KindValidation, "Invalid skip parameter")
	}
	if limit < 1 || limit > 100 {
		return ListResult{}, newError(KindValidation, "Invalid limit parameter")
	}

	identity, oerr := o.verifyIdentity(ctx, authorization)
	if oerr != nil {
		return ListResult{}, oerr
	}

	records, total, err := o.gallery.List(ctx, identity.UserID, skip, limit)
	if err != nil {
		return ListResult{}, leafError(err, msgGalleryUnavailable)
	}

	photos := make([]HydratedPhoto, 0, len(records))
	for _, record := range records {
		photos = append(photos, hydrate(record))
	}

	return ListResult{Photos: photos, Total: total}, nil
}

// FetchResult は写真データ取得操作の結果。
type FetchResult struct {
	// Data は写真の全バイト列。
	Data []byte
	// ContentType はレコードに記録されたMIMEタイプ。
	ContentType string
	// OriginalName はレコードに記録された元のファイル名。
	OriginalName string
}

// Fetch は写真メタデータを確認したうえでBlobの中身を取得する。
//
// 存在しないIDと他人のIDは同一の404になる。レコードの存在を確認した後の
// メディア取得失敗（Blob欠落 = ぶら下がり参照を含む）は404ではなく
// サーバー側の失敗として返し、IDとストレージキーをログに残す。
func (o *Orchestrator) Fetch(ctx context.Context, authorization, photoID string) (FetchResult, error) {
	identity, oerr := o.verifyIdentity(ctx, authorization)
	if oerr != nil {
		return FetchResult{}, oerr
	}

	record, err := o.gallery.Get(ctx, photoID, identity.UserID)
	if err != nil {
		return FetchResult{}, leafError(err, msgGalleryUnavailable)
	}

	data, err := o.media.Fetch(ctx, record.StorageKey, record.OriginalName, record.ContentType)
	if err != nil {
		oerr := leafError(err, msgMediaUnavailable)
		if oerr.Kind == KindUnavailable {
			return FetchResult{}, oerr
		}
		// レコードは生きているのにBlobを取得できない。
		log.Printf("[Inconsistent] 有効なレコードのBlobを取得できません: id=%s, storage_key=%s, error=%v",
			record.ID, record.StorageKey, err)
		return FetchResult{}, newError(KindInconsistent, fmt.Sprintf("Stored media unavailable for photo %s", record.ID))
	}

	return FetchResult{
		Data:         data,
		ContentType:  record.ContentType,
		OriginalName: record.OriginalName,
	}, nil
}

// Delete は写真メタデータを削除し、参照されていたBlobの削除を試みる。
//
// メタデータの削除が成功した時点でレコードは存在しなくなるため、
// その後のBlob削除失敗は孤児Blob（許容される軽い不整合）であり、
// ログにのみ残してクライアントには成功を返す。
func (o *Orchestrator) Delete(ctx context.Context, authorization, photoID string) error {
	identity, oerr := o.verifyIdentity(ctx, authorization)
	if oerr != nil {
		return oerr
	}

	storageKey, err := o.gallery.Delete(ctx, photoID, identity.UserID)
	if err != nil {
		return leafError(err, msgGalleryUnavailable)
	}

	if err := o.media.Delete(ctx, storageKey); err != nil {
		log.Printf("[Delete] メタデータ削除後のBlob削除に失敗（孤児Blobとして許容）: id=%s, storage_key=%s, error=%v",
			photoID, storageKey, err)
	}

	return nil
}

// hydrate はPhotoRecordに取得用URLを付与する。
// URLはIDから決定的に導出され、永続化はされない。
func hydrate(record PhotoRecord) HydratedPhoto {
	return HydratedPhoto{
		PhotoRecord: record,
		URL:         "/api/serve/" + record.ID,
	}
}
