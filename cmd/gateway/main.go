// API Gatewayサービスのエントリポイント。
// 認証・メディア・ギャラリーの3サービスを束ね、写真のアップロード・
// 一覧・取得・削除を単一のAPIとして公開する。
// 外部からアクセス可能な唯一のサービスであり、整合性の境界線となる。
package main

import (
	"log"

	"github.com/nao1215/photure/internal/gateway"
	"github.com/nao1215/photure/pkg/config"
)

func main() {
	var cfg config.Gateway
	if err := config.Load(&cfg); err != nil {
		log.Fatalf("Gateway設定の読み込みに失敗: %v", err)
	}

	server, err := gateway.NewServer(cfg)
	if err != nil {
		log.Fatalf("Gatewayサーバーの初期化に失敗: %v", err)
	}
	defer server.Close()

	log.Printf("Gatewayサービスを起動します: :%s", cfg.Port)
	if err := server.Run(); err != nil {
		log.Fatalf("Gatewayサービスの起動に失敗: %v", err)
	}
}
