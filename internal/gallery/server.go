package gallery

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/nao1215/photure/pkg/config"
	"github.com/nao1215/photure/pkg/middleware"
)

// Server はギャラリーサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はphotosテーブルへのクエリ実行オブジェクト。
	queries *Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// NewServer は新しいギャラリーサーバーを生成する。
// SQLiteデータベースの初期化とマイグレーションの適用を行う。
func NewServer(cfg config.Gallery) (*Server, error) {
	sqlDB, err := sql.Open("sqlite", cfg.DatabasePath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:  router,
		port:    cfg.Port,
		queries: NewQueries(sqlDB),
		db:      sqlDB,
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	photos := s.router.Group("/gallery/photos")
	{
		// 写真メタデータの作成
		photos.POST("", s.handleCreate())
		// 所有者スコープの写真メタデータ一覧取得
		photos.GET("", s.handleList())
		// 写真メタデータの取得
		photos.GET("/:id", s.handleGetByID())
		// 写真メタデータの削除
		photos.DELETE("/:id", s.handleDelete())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gallery"})
	})
}

// createPhotoRequest は写真メタデータ作成リクエストのJSON構造。
type createPhotoRequest struct {
	// StorageKey はメディアサービスが採番したストレージキー。
	StorageKey string `json:"storage_key" binding:"required"`
	// Filename はメディアサービスが確定したファイル名。
	Filename string `json:"filename" binding:"required"`
	// OriginalName はクライアントが申告した元のファイル名。
	OriginalName string `json:"original_name" binding:"required"`
	// ContentType はファイルのMIMEタイプ。
	ContentType string `json:"content_type" binding:"required"`
	// Size はファイルサイズ（バイト）。
	Size int64 `json:"size"`
	// UserID は所有者のユーザーID。
	UserID string `json:"user_id" binding:"required"`
}

// photoResponse は写真メタデータのJSONレスポンス構造。
type photoResponse struct {
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

// toPhotoResponse はDB行をJSONレスポンスに変換する。
func toPhotoResponse(p Photo) photoResponse {
	return photoResponse{
		ID:           p.ID,
		Filename:     p.Filename,
		OriginalName: p.OriginalName,
		ContentType:  p.ContentType,
		Size:         p.Size,
		UserID:       p.UserID,
		UploadDate:   p.UploadDate.UTC().Format(time.RFC3339),
		StorageKey:   p.StorageKey,
	}
}

// userIDFromHeader は X-User-Id ヘッダーから所有者のユーザーIDを取得する。
// 未設定の場合は401を返してリクエストを打ち切る。
func userIDFromHeader(c *gin.Context) (string, bool) {
	userID := c.GetHeader("X-User-Id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing user context"})
		return "", false
	}
	return userID, true
}

// handleCreate は写真メタデータの作成を処理するハンドラを返す。
// IDとアップロード日時はサーバー側で採番する。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createPhotoRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		photoID := uuid.New().String()
		uploadDate := time.Now().UTC()

		if err := s.queries.CreatePhoto(c.Request.Context(), CreatePhotoParams{
			ID:           photoID,
			StorageKey:   req.StorageKey,
			Filename:     req.Filename,
			OriginalName: req.OriginalName,
			ContentType:  req.ContentType,
			Size:         req.Size,
			UserID:       req.UserID,
			UploadDate:   uploadDate,
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "写真メタデータの作成に失敗しました"})
			log.Printf("写真メタデータ作成エラー: %v", err)
			return
		}

		created, err := s.queries.GetPhoto(c.Request.Context(), GetPhotoParams{ID: photoID, UserID: req.UserID})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "作成した写真メタデータの取得に失敗しました"})
			log.Printf("写真メタデータ取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toPhotoResponse(created))
	}
}

// handleList は所有者スコープの写真メタデータ一覧取得を処理するハンドラを返す。
// skip/limitによるページネーションを行い、totalには所有者の全件数を返す。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := userIDFromHeader(c)
		if !ok {
			return
		}

		skip, err := strconv.ParseInt(c.DefaultQuery("skip", "0"), 10, 64)
		if err != nil || skip < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid skip parameter"})
			return
		}
		limit, err := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
		if err != nil || limit < 1 || limit > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}

		photos, err := s.queries.ListPhotosByUser(c.Request.Context(), ListPhotosByUserParams{
			UserID: userID,
			Limit:  limit,
			Skip:   skip,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "写真メタデータ一覧の取得に失敗しました"})
			log.Printf("写真メタデータ一覧取得エラー: %v", err)
			return
		}

		total, err := s.queries.CountPhotosByUser(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "写真メタデータ総数の取得に失敗しました"})
			log.Printf("写真メタデータ総数取得エラー: %v", err)
			return
		}

		responses := make([]photoResponse, 0, len(photos))
		for _, p := range photos {
			responses = append(responses, toPhotoResponse(p))
		}

		c.JSON(http.StatusOK, gin.H{
			"photos": responses,
			"total":  total,
		})
	}
}

// handleGetByID は写真メタデータの取得を処理するハンドラを返す。
// 存在しない場合と所有者が異なる場合は同一の404を返し、
// 他人のレコードの存在を漏らさない。
func (s *Server) handleGetByID() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := userIDFromHeader(c)
		if !ok {
			return
		}

		p, err := s.queries.GetPhoto(c.Request.Context(), GetPhotoParams{
			ID:     c.Param("id"),
			UserID: userID,
		})
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Photo not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "写真メタデータの取得に失敗しました"})
			log.Printf("写真メタデータ取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toPhotoResponse(p))
	}
}

// handleDelete は写真メタデータの削除を処理するハンドラを返す。
// 削除に成功した場合、参照していたストレージキーを返す。
// 呼び出し側はこのキーでメディアサービスのBlobを削除する。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := userIDFromHeader(c)
		if !ok {
			return
		}

		p, err := s.queries.GetPhoto(c.Request.Context(), GetPhotoParams{
			ID:     c.Param("id"),
			UserID: userID,
		})
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Photo not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "写真メタデータの取得に失敗しました"})
			log.Printf("写真メタデータ取得エラー: %v", err)
			return
		}

		if err := s.queries.DeletePhoto(c.Request.Context(), DeletePhotoParams{
			ID:     p.ID,
			UserID: userID,
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "写真メタデータの削除に失敗しました"})
			log.Printf("写真メタデータ削除エラー: %v", err)
			return
		}

		log.Printf("写真メタデータを削除しました: id=%s, user_id=%s", p.ID, userID)
		c.JSON(http.StatusOK, gin.H{
			"storage_key": p.StorageKey,
			"deleted":     true,
		})
	}
}
