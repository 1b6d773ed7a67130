package auth

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/nao1215/photure/pkg/config"
	"github.com/nao1215/photure/pkg/middleware"
)

// devUserEmail は開発用トークン発行で使用する固定ユーザーのメールアドレス。
const devUserEmail = "dev@localhost"

// Server は認証サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はユーザーテーブルへのクエリ実行オブジェクト。
	queries *Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// jwtSecret はJWT署名用の秘密鍵。
	jwtSecret string
}

// NewServer は新しい認証サーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(cfg config.Auth) (*Server, error) {
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
		router:    router,
		port:      cfg.Port,
		queries:   NewQueries(sqlDB),
		db:        sqlDB,
		jwtSecret: cfg.JWTSecret,
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
	// トークン検証（Gatewayから呼び出される）
	s.router.POST("/verify", s.handleVerify())

	// 開発用トークン発行
	s.router.POST("/auth/dev-token", s.handleDevToken())

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "auth"})
	})
}

// verifyResponse はトークン検証成功時のレスポンス。
type verifyResponse struct {
	// UserID は検証済みユーザーの一意識別子。
	UserID string `json:"user_id"`
	// SessionID はログインセッションの識別子。存在しない場合は空。
	SessionID string `json:"session_id,omitempty"`
}

// handleVerify はBearerトークンの検証を処理するハンドラを返す。
// 検証に成功した場合、ユーザーIDとセッションIDを返す。
// クライアント向けエラーメッセージはGatewayがそのまま転送するため、
// 外部APIの契約として固定の英語文言を使用する。
func (s *Server) handleVerify() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing Authorization header"})
			return
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid Authorization header"})
			return
		}

		claims, err := VerifyToken(s.jwtSecret, tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication failed"})
			return
		}

		if claims.UserID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User ID missing in token"})
			return
		}

		c.JSON(http.StatusOK, verifyResponse{
			UserID:    claims.UserID,
			SessionID: claims.SessionID,
		})
	}
}

// handleDevToken は開発用JWTトークンを発行するハンドラを返す。
// 開発用ユーザーが存在しなければ作成し、存在すれば最終ログイン日時を更新する。
// 本番環境では無効化すべき。
func (s *Server) handleDevToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		userID := uuid.New().String()

		user, err := s.queries.GetUserByEmail(ctx, devUserEmail)
		switch {
		case err == sql.ErrNoRows:
			if err := s.queries.CreateUser(ctx, CreateUserParams{
				ID:          userID,
				Email:       devUserEmail,
				DisplayName: "開発ユーザー",
			}); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー作成に失敗しました"})
				log.Printf("開発ユーザー作成エラー: %v", err)
				return
			}
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー取得に失敗しました"})
			log.Printf("開発ユーザー取得エラー: %v", err)
			return
		default:
			// 既存の開発ユーザーを使用
			userID = user.ID
			_ = s.queries.UpdateLastLogin(ctx, userID)
		}

		token, err := GenerateToken(s.jwtSecret, userID, uuid.New().String(), devUserEmail)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークン生成に失敗しました"})
			log.Printf("JWT生成エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":   token,
			"user_id": userID,
		})
	}
}
