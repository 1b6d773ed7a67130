// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// GatewayがAuth・Gallery・Mediaの各サービスのAPIを呼び出す際に使用する。
// JSON・マルチパート・バイナリ取得の通信パターンを統一し、
// 上流のエラー応答（ステータスとメッセージ）と接続エラーを型で区別する。
package httpclient
