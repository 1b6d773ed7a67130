package media

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nao1215/photure/pkg/config"
	"github.com/nao1215/photure/pkg/middleware"
)

// Server はメディアサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// uploadDir はメディアファイルの保存先ディレクトリ。
	uploadDir string
	// maxUploadBytes はアップロード可能なファイルの最大サイズ（バイト）。
	maxUploadBytes int64
}

// NewServer は新しいメディアサーバーを生成する。
// ファイル保存ディレクトリの初期化も行う。
func NewServer(cfg config.Media) (*Server, error) {
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("メディア保存ディレクトリの作成に失敗: %w", err)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	// マルチパートフォームの最大メモリを設定する。
	router.MaxMultipartMemory = cfg.MaxUploadBytes

	s := &Server{
		router:         router,
		port:           cfg.Port,
		uploadDir:      cfg.UploadDir,
		maxUploadBytes: cfg.MaxUploadBytes,
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
	mediaGroup := s.router.Group("/media")
	{
		// メディアのアップロード（マルチパートフォーム）
		mediaGroup.POST("/upload", s.handleUpload())
		// ストレージキーによるメディアの取得
		mediaGroup.GET("/:storage_key", s.handleFetch())
		// ストレージキーによるメディアの削除
		mediaGroup.DELETE("/:storage_key", s.handleDelete())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "media"})
	})
}

// uploadResponse はアップロード成功時のレスポンス。
// 以降のメタデータはクライアント申告値ではなく、ここで返す値が正となる。
type uploadResponse struct {
	// StorageKey はサーバーが採番したBlobの識別子。
	StorageKey string `json:"storage_key"`
	// Filename は保存したファイルの名前。
	Filename string `json:"filename"`
	// ContentType はファイルのMIMEタイプ。
	ContentType string `json:"content_type"`
	// Size はファイルサイズ（バイト）。
	Size int64 `json:"size"`
}

// handleUpload はメディアファイルのアップロードを処理するハンドラを返す。
// 画像以外のContent-Typeは400、サイズ上限超過は413で拒否する。
// ストレージキーはUUIDに元ファイルの拡張子を付けたもの。
func (s *Server) handleUpload() gin.HandlerFunc {
	return func(c *gin.Context) {
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("ファイルの取得に失敗しました: %v", err)})
			return
		}
		defer file.Close()

		contentType := header.Header.Get("Content-Type")
		if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Only image files are allowed"})
			return
		}

		contents, err := io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ファイルの読み取りに失敗しました"})
			log.Printf("アップロードファイル読み取りエラー: %v", err)
			return
		}

		if int64(len(contents)) > s.maxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File exceeds max upload size"})
			return
		}

		// ストレージキーにはUUIDと元ファイルの拡張子のみを使用し、
		// クライアント由来のパス要素を持ち込まない。
		filename := filepath.Base(header.Filename)
		storageKey := uuid.New().String() + filepath.Ext(filename)

		destination := filepath.Join(s.uploadDir, storageKey)
		if err := os.WriteFile(destination, contents, 0o644); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ファイルの保存に失敗しました"})
			log.Printf("ファイル保存エラー: %v", err)
			return
		}

		log.Printf("メディアを保存しました: storage_key=%s, size=%d", storageKey, len(contents))

		if filename == "" || filename == "." {
			filename = storageKey
		}
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		c.JSON(http.StatusOK, uploadResponse{
			StorageKey:  storageKey,
			Filename:    filename,
			ContentType: contentType,
			Size:        int64(len(contents)),
		})
	}
}

// handleFetch はストレージキーによるメディア取得を処理するハンドラを返す。
// クエリパラメータ download_name と content_type を表示ヒントとして受け取る。
func (s *Server) handleFetch() gin.HandlerFunc {
	return func(c *gin.Context) {
		path, ok := s.resolveStoragePath(c.Param("storage_key"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Media not found"})
			return
		}

		contents, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Media not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ファイルの読み取りに失敗しました"})
			log.Printf("メディア読み取りエラー: %v", err)
			return
		}

		contentType := c.Query("content_type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		downloadName := c.Query("download_name")
		if downloadName == "" {
			downloadName = c.Param("storage_key")
		}

		c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", downloadName))
		c.Data(http.StatusOK, contentType, contents)
	}
}

// handleDelete はストレージキーによるメディア削除を処理するハンドラを返す。
// 存在しないキーの削除は404を返す（冪等: 呼び出し側は安全に再試行できる）。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		path, ok := s.resolveStoragePath(c.Param("storage_key"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Media not found"})
			return
		}

		if _, err := os.Stat(path); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Media not found"})
			return
		}

		if err := os.Remove(path); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ファイルの削除に失敗しました"})
			log.Printf("メディア削除エラー: %v", err)
			return
		}

		log.Printf("メディアを削除しました: storage_key=%s", c.Param("storage_key"))
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	}
}

// resolveStoragePath はストレージキーを保存先のファイルパスに解決する。
// パス要素を含む不正なキーはfalseを返す。
func (s *Server) resolveStoragePath(storageKey string) (string, bool) {
	if storageKey == "" || storageKey != filepath.Base(storageKey) {
		return "", false
	}
	return filepath.Join(s.uploadDir, storageKey), true
}
