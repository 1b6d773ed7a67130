package gateway

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/photure/pkg/config"
	"github.com/nao1215/photure/pkg/httpclient"
	"github.com/nao1215/photure/pkg/middleware"
)

// Server はAPI GatewayサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// httpClient はリーフサービスとの通信で共有する接続プール。
	// 起動時に生成し、停止時にClose()で解放する。
	httpClient *http.Client
	// orchestrator はリーフサービス呼び出しのオーケストレータ。
	orchestrator *Orchestrator
}

// NewServer は新しいGatewayサーバーを生成する。
// 3つのリーフサービスへのクライアントは1つの接続プールを共有する。
func NewServer(cfg config.Gateway) (*Server, error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}

	orchestrator := NewOrchestrator(
		newAuthClient(httpclient.NewWithHTTPClient(httpClient, cfg.AuthServiceURL)),
		newMediaClient(httpclient.NewWithHTTPClient(httpClient, cfg.MediaServiceURL)),
		newGalleryClient(httpclient.NewWithHTTPClient(httpClient, cfg.GalleryServiceURL)),
	)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS([]string{cfg.FrontendURL}))

	s := &Server{
		router:       router,
		port:         cfg.Port,
		httpClient:   httpClient,
		orchestrator: orchestrator,
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// Close は共有している接続プールを解放する。
func (s *Server) Close() {
	s.httpClient.CloseIdleConnections()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		// 写真のアップロード（マルチパートフォーム）
		api.POST("/upload", s.handleUpload())
		// 写真メタデータの一覧取得
		api.GET("/photos", s.handleListPhotos())
		// 写真データの取得
		api.GET("/serve/:id", s.handleServePhoto())
		// 写真の削除
		api.DELETE("/photos/:id", s.handleDeletePhoto())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	})
}

// renderError はオーケストレーションのエラーをHTTPレスポンスに変換する。
func renderError(c *gin.Context, err error) {
	var oerr *Error
	if errors.As(err, &oerr) {
		c.JSON(oerr.HTTPStatus(), gin.H{"error": oerr.Message})
		return
	}

	log.Printf("想定外のエラー: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "内部サーバーエラーが発生しました"})
}

// handleUpload は写真のアップロードを処理するハンドラを返す。
// マルチパートフォームの全ペイロードを読み込んでからオーケストレータに渡す。
// サイズ上限の検査はメディアサービスが行い、413をそのまま伝播する。
func (s *Server) handleUpload() gin.HandlerFunc {
	return func(c *gin.Context) {
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("ファイルの取得に失敗しました: %v", err)})
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ファイルの読み取りに失敗しました"})
			log.Printf("アップロードファイル読み取りエラー: %v", err)
			return
		}

		hydrated, err := s.orchestrator.Upload(c.Request.Context(), UploadInput{
			Authorization: c.GetHeader("Authorization"),
			Filename:      header.Filename,
			ContentType:   header.Header.Get("Content-Type"),
			Data:          data,
		})
		if err != nil {
			renderError(c, err)
			return
		}

		c.JSON(http.StatusOK, hydrated)
	}
}

// handleListPhotos は写真メタデータの一覧取得を処理するハンドラを返す。
// skipのデフォルトは0、limitのデフォルトは20。
func (s *Server) handleListPhotos() gin.HandlerFunc {
	return func(c *gin.Context) {
		skip, err := strconv.ParseInt(c.DefaultQuery("skip", "0"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid skip parameter"})
			return
		}
		limit, err := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}

		result, err := s.orchestrator.List(c.Request.Context(), c.GetHeader("Authorization"), skip, limit)
		if err != nil {
			renderError(c, err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// handleServePhoto は写真データの取得を処理するハンドラを返す。
// レコードに記録されたMIMEタイプと元のファイル名でバイト列を返す。
func (s *Server) handleServePhoto() gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := s.orchestrator.Fetch(c.Request.Context(), c.GetHeader("Authorization"), c.Param("id"))
		if err != nil {
			renderError(c, err)
			return
		}

		c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", result.OriginalName))
		c.Data(http.StatusOK, result.ContentType, result.Data)
	}
}

// handleDeletePhoto は写真の削除を処理するハンドラを返す。
// メタデータの削除が成功すれば、Blob削除の結果にかかわらず成功を返す。
func (s *Server) handleDeletePhoto() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.orchestrator.Delete(c.Request.Context(), c.GetHeader("Authorization"), c.Param("id")); err != nil {
			renderError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Photo deleted successfully"})
	}
}
