// メディアサービスのエントリポイント。
// 画像バイナリのアップロード・取得・削除を担当するBlobストア。
package main

import (
	"log"

	"github.com/nao1215/photure/internal/media"
	"github.com/nao1215/photure/pkg/config"
)

func main() {
	var cfg config.Media
	if err := config.Load(&cfg); err != nil {
		log.Fatalf("メディアサービス設定の読み込みに失敗: %v", err)
	}

	server, err := media.NewServer(cfg)
	if err != nil {
		log.Fatalf("メディアサーバーの初期化に失敗: %v", err)
	}

	log.Printf("メディアサービスを起動します: :%s", cfg.Port)
	if err := server.Run(); err != nil {
		log.Fatalf("メディアサービスの起動に失敗: %v", err)
	}
}
