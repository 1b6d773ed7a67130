// 認証サービスのエントリポイント。
// GatewayからのBearerトークン検証と、開発用トークンの発行を担当する。
package main

import (
	"log"

	"github.com/nao1215/photure/internal/auth"
	"github.com/nao1215/photure/pkg/config"
)

func main() {
	var cfg config.Auth
	if err := config.Load(&cfg); err != nil {
		log.Fatalf("認証サービス設定の読み込みに失敗: %v", err)
	}

	server, err := auth.NewServer(cfg)
	if err != nil {
		log.Fatalf("認証サーバーの初期化に失敗: %v", err)
	}

	log.Printf("認証サービスを起動します: :%s", cfg.Port)
	if err := server.Run(); err != nil {
		log.Fatalf("認証サービスの起動に失敗: %v", err)
	}
}
