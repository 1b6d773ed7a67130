// ギャラリーサービスのエントリポイント。
// 写真メタデータの作成・一覧・取得・削除を担当するカタログ。
package main

import (
	"log"

	"github.com/nao1215/photure/internal/gallery"
	"github.com/nao1215/photure/pkg/config"
)

func main() {
	var cfg config.Gallery
	if err := config.Load(&cfg); err != nil {
		log.Fatalf("ギャラリーサービス設定の読み込みに失敗: %v", err)
	}

	server, err := gallery.NewServer(cfg)
	if err != nil {
		log.Fatalf("ギャラリーサーバーの初期化に失敗: %v", err)
	}

	log.Printf("ギャラリーサービスを起動します: :%s", cfg.Port)
	if err := server.Run(); err != nil {
		log.Fatalf("ギャラリーサービスの起動に失敗: %v", err)
	}
}
