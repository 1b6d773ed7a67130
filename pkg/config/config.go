// Package config は各サービスの設定を環境変数から読み込む。
//
// caarlos0/env を使用し、環境変数が未設定の場合はローカル開発向けの
// デフォルト値を適用する。設定はサービス起動時に一度だけ読み込み、
// 以降は不変として扱う。
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Gateway はAPI Gatewayサービスの設定。
type Gateway struct {
	// Port はサーバーのリッスンポート。
	Port string `env:"PORT" envDefault:"8080"`
	// AuthServiceURL は認証サービスのベースURL。
	AuthServiceURL string `env:"AUTH_SERVICE_URL" envDefault:"http://localhost:8010"`
	// GalleryServiceURL はギャラリーサービスのベースURL。
	GalleryServiceURL string `env:"GALLERY_SERVICE_URL" envDefault:"http://localhost:8020"`
	// MediaServiceURL はメディアサービスのベースURL。
	MediaServiceURL string `env:"MEDIA_SERVICE_URL" envDefault:"http://localhost:8030"`
	// FrontendURL はCORSで許可するフロントエンドのオリジン。
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
}

// Auth は認証サービスの設定。
type Auth struct {
	// Port はサーバーのリッスンポート。
	Port string `env:"PORT" envDefault:"8010"`
	// JWTSecret はJWT署名用の秘密鍵。
	JWTSecret string `env:"JWT_SECRET" envDefault:"dev-secret-key"`
	// DatabasePath はSQLiteデータベースファイルのパス。
	DatabasePath string `env:"AUTH_DB_PATH" envDefault:"/data/auth.db"`
}

// Gallery はギャラリーサービスの設定。
type Gallery struct {
	// Port はサーバーのリッスンポート。
	Port string `env:"PORT" envDefault:"8020"`
	// DatabasePath はSQLiteデータベースファイルのパス。
	DatabasePath string `env:"GALLERY_DB_PATH" envDefault:"/data/gallery.db"`
}

// Media はメディアサービスの設定。
type Media struct {
	// Port はサーバーのリッスンポート。
	Port string `env:"PORT" envDefault:"8030"`
	// UploadDir はメディアファイルの保存先ディレクトリ。
	UploadDir string `env:"UPLOAD_DIR" envDefault:"/data/uploads"`
	// MaxUploadBytes はアップロード可能なファイルの最大サイズ（バイト）。
	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"20971520"`
}

// Load は環境変数から設定を読み込む。
// targetには各サービスの設定構造体へのポインタを渡す。
func Load(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("環境変数の読み込みに失敗: %w", err)
	}
	return nil
}
