package gallery

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestServer はテスト用のギャラリーサーバーを生成する。
// インメモリSQLiteを使用する。
func newTestServer(t *testing.T) *Server {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDB接続に失敗: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	if err := initSchema(sqlDB); err != nil {
		t.Fatalf("スキーマ初期化に失敗: %v", err)
	}

	router := gin.New()
	s := &Server{
		router:  router,
		port:    "0",
		queries: NewQueries(sqlDB),
		db:      sqlDB,
	}
	s.setupRoutes()

	return s
}

// createPhoto は作成エンドポイント経由でテスト用の写真メタデータを作成する。
func createPhoto(t *testing.T, s *Server, storageKey, userID string) photoResponse {
	t.Helper()

	body := createPhotoRequest{
		StorageKey:   storageKey,
		Filename:     storageKey,
		OriginalName: "original-" + storageKey,
		ContentType:  "image/jpeg",
		Size:         10,
		UserID:       userID,
	}
	jsonBody, _ := json.Marshal(body)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/gallery/photos", bytes.NewReader(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("テスト用写真メタデータ作成に失敗: status=%d, body=%s", w.Code, w.Body.String())
	}

	var result photoResponse
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("レスポンスのパースに失敗: %v", err)
	}
	return result
}

// listResult は一覧エンドポイントのJSONレスポンス構造。
type listResult struct {
	Photos []photoResponse `json:"photos"`
	Total  int64           `json:"total"`
}

// listPhotos は一覧エンドポイントを呼び出して結果を返す。
func listPhotos(t *testing.T, s *Server, userID, query string) (listResult, int) {
	t.Helper()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/gallery/photos"+query, nil)
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	s.router.ServeHTTP(w, req)

	var result listResult
	if w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
	}
	return result, w.Code
}

// TestHandleCreate は写真メタデータ作成ハンドラのテスト。
func TestHandleCreate(t *testing.T) {
	t.Parallel()

	t.Run("IDとアップロード日時を採番してレコードを作成する", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		created := createPhoto(t, s, "key-001.jpg", "user-a")

		if created.ID == "" {
			t.Error("IDが採番されていない")
		}
		if created.StorageKey != "key-001.jpg" {
			t.Errorf("StorageKey: got %q, want %q", created.StorageKey, "key-001.jpg")
		}
		if created.UserID != "user-a" {
			t.Errorf("UserID: got %q, want %q", created.UserID, "user-a")
		}
		if created.OriginalName != "original-key-001.jpg" {
			t.Errorf("OriginalName: got %q, want %q", created.OriginalName, "original-key-001.jpg")
		}

		// upload_dateはサーバー側で採番されたRFC3339のUTC時刻
		uploadDate, err := time.Parse(time.RFC3339, created.UploadDate)
		if err != nil {
			t.Fatalf("UploadDateのパースに失敗: %v", err)
		}
		if time.Since(uploadDate) > time.Minute {
			t.Errorf("UploadDateが現在時刻から離れすぎている: %v", created.UploadDate)
		}
	})

	t.Run("必須フィールドが不足している場合は400を返す", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)

		// storage_key が欠けている
		body := map[string]any{
			"filename":      "cat.jpg",
			"original_name": "cat.jpg",
			"content_type":  "image/jpeg",
			"user_id":       "user-a",
		}
		jsonBody, _ := json.Marshal(body)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/gallery/photos", bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		s.router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("不正なJSONの場合は400を返す", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/gallery/photos", bytes.NewReader([]byte("invalid json")))
		req.Header.Set("Content-Type", "application/json")
		s.router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("同じストレージキーの二重作成は失敗する", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		createPhoto(t, s, "key-dup.jpg", "user-a")

		body := createPhotoRequest{
			StorageKey:   "key-dup.jpg",
			Filename:     "key-dup.jpg",
			OriginalName: "dup.jpg",
			ContentType:  "image/jpeg",
			Size:         10,
			UserID:       "user-a",
		}
		jsonBody, _ := json.Marshal(body)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/gallery/photos", bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		s.router.ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusInternalServerError)
		}
	})
}

// TestHandleList は写真メタデータ一覧ハンドラのテスト。
func TestHandleList(t *testing.T) {
	t.Parallel()

	t.Run("X-User-Idヘッダーが無い場合は401を返す", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		_, code := listPhotos(t, s, "", "")
		if code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", code, http.StatusUnauthorized)
		}
	})

	t.Run("所有者の写真だけを新しい順で返す", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		first := createPhoto(t, s, "key-a1.jpg", "user-a")
		second := createPhoto(t, s, "key-a2.jpg", "user-a")
		createPhoto(t, s, "key-b1.jpg", "user-b")

		result, code := listPhotos(t, s, "user-a", "")
		if code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", code, http.StatusOK)
		}

		if result.Total != 2 {
			t.Errorf("総数: got %d, want 2", result.Total)
		}
		if len(result.Photos) != 2 {
			t.Fatalf("写真件数: got %d, want 2", len(result.Photos))
		}
		// 後から作成したものが先頭に来る
		if result.Photos[0].ID != second.ID {
			t.Errorf("先頭のID: got %q, want %q", result.Photos[0].ID, second.ID)
		}
		if result.Photos[1].ID != first.ID {
			t.Errorf("2件目のID: got %q, want %q", result.Photos[1].ID, first.ID)
		}
		for _, p := range result.Photos {
			if p.UserID != "user-a" {
				t.Errorf("他人の写真が混入している: user_id=%q", p.UserID)
			}
		}
	})

	t.Run("skipとlimitでページングし総数は全件数を返す", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		for i := 0; i < 5; i++ {
			createPhoto(t, s, fmt.Sprintf("key-%03d.jpg", i), "user-a")
		}

		result, code := listPhotos(t, s, "user-a", "?skip=2&limit=2")
		if code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", code, http.StatusOK)
		}
		if len(result.Photos) != 2 {
			t.Errorf("写真件数: got %d, want 2", len(result.Photos))
		}
		if result.Total != 5 {
			t.Errorf("総数: got %d, want 5", result.Total)
		}
	})

	t.Run("全件を超えるskipは空の一覧を返す", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		createPhoto(t, s, "key-001.jpg", "user-a")

		result, code := listPhotos(t, s, "user-a", "?skip=10")
		if code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", code, http.StatusOK)
		}
		if len(result.Photos) != 0 {
			t.Errorf("写真件数: got %d, want 0", len(result.Photos))
		}
		if result.Total != 1 {
			t.Errorf("総数: got %d, want 1", result.Total)
		}
	})

	t.Run("不正なページネーションは400を返す", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)

		for _, query := range []string{"?skip=-1", "?limit=0", "?limit=101", "?skip=abc", "?limit=abc"} {
			_, code := listPhotos(t, s, "user-a", query)
			if code != http.StatusBadRequest {
				t.Errorf("%s のステータスコード: got %d, want %d", query, code, http.StatusBadRequest)
			}
		}
	})

	t.Run("境界値のlimitは受け付ける", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)

		for _, query := range []string{"?limit=1", "?limit=100"} {
			_, code := listPhotos(t, s, "user-a", query)
			if code != http.StatusOK {
				t.Errorf("%s のステータスコード: got %d, want %d", query, code, http.StatusOK)
			}
		}
	})
}

// TestHandleGetByID は写真メタデータ取得ハンドラのテスト。
func TestHandleGetByID(t *testing.T) {
	t.Parallel()

	t.Run("所有者の写真メタデータを返す", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		created := createPhoto(t, s, "key-001.jpg", "user-a")

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/gallery/photos/"+created.ID, nil)
		req.Header.Set("X-User-Id", "user-a")
		s.router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}

		var result photoResponse
		if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if result.ID != created.ID {
			t.Errorf("ID: got %q, want %q", result.ID, created.ID)
		}
		if result.StorageKey != "key-001.jpg" {
			t.Errorf("StorageKey: got %q, want %q", result.StorageKey, "key-001.jpg")
		}
	})

	t.Run("X-User-Idヘッダーが無い場合は401を返す", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/gallery/photos/some-id", nil)
		s.router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}

		var result map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if result["error"] != "Missing user context" {
			t.Errorf("メッセージ: got %q, want %q", result["error"], "Missing user context")
		}
	})

	t.Run("存在しないIDは404を返す", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/gallery/photos/nonexistent", nil)
		req.Header.Set("X-User-Id", "user-a")
		s.router.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("他人の写真IDは存在しないIDと同じ404を返す", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		created := createPhoto(t, s, "key-secret.jpg", "user-a")

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/gallery/photos/"+created.ID, nil)
		req.Header.Set("X-User-Id", "user-b")
		s.router.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusNotFound)
		}

		var result map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if result["error"] != "Photo not found" {
			t.Errorf("メッセージ: got %q, want %q", result["error"], "Photo not found")
		}
	})
}

// TestHandleDelete は写真メタデータ削除ハンドラのテスト。
func TestHandleDelete(t *testing.T) {
	t.Parallel()

	t.Run("削除に成功するとストレージキーを返す", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		created := createPhoto(t, s, "key-001.jpg", "user-a")

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/gallery/photos/"+created.ID, nil)
		req.Header.Set("X-User-Id", "user-a")
		s.router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}

		var result struct {
			StorageKey string `json:"storage_key"`
			Deleted    bool   `json:"deleted"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if result.StorageKey != "key-001.jpg" {
			t.Errorf("StorageKey: got %q, want %q", result.StorageKey, "key-001.jpg")
		}
		if !result.Deleted {
			t.Error("deletedがtrueではない")
		}

		// 削除後は取得も404になる
		getRecorder := httptest.NewRecorder()
		getReq := httptest.NewRequest(http.MethodGet, "/gallery/photos/"+created.ID, nil)
		getReq.Header.Set("X-User-Id", "user-a")
		s.router.ServeHTTP(getRecorder, getReq)
		if getRecorder.Code != http.StatusNotFound {
			t.Errorf("削除後の取得のステータスコード: got %d, want %d", getRecorder.Code, http.StatusNotFound)
		}
	})

	t.Run("存在しないIDは404を返す", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/gallery/photos/nonexistent", nil)
		req.Header.Set("X-User-Id", "user-a")
		s.router.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("他人の写真は削除できず404を返す", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		created := createPhoto(t, s, "key-secret.jpg", "user-a")

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/gallery/photos/"+created.ID, nil)
		req.Header.Set("X-User-Id", "user-b")
		s.router.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusNotFound)
		}

		// 所有者からは引き続き取得できる
		getRecorder := httptest.NewRecorder()
		getReq := httptest.NewRequest(http.MethodGet, "/gallery/photos/"+created.ID, nil)
		getReq.Header.Set("X-User-Id", "user-a")
		s.router.ServeHTTP(getRecorder, getReq)
		if getRecorder.Code != http.StatusOK {
			t.Errorf("所有者からの取得のステータスコード: got %d, want %d", getRecorder.Code, http.StatusOK)
		}
	})
}

// TestGalleryHealthCheck はヘルスチェックエンドポイントのテスト。
func TestGalleryHealthCheck(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
	}

	var result map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("レスポンスのパースに失敗: %v", err)
	}
	if result["status"] != "ok" {
		t.Errorf("status: got %q, want %q", result["status"], "ok")
	}
	if result["service"] != "gallery" {
		t.Errorf("service: got %q, want %q", result["service"], "gallery")
	}
}
