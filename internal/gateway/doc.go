// Package gateway はAPI Gatewayサービスの内部実装を提供する。
//
// 認証・メディア・ギャラリーの3サービスへの呼び出しを順序付け、
// 写真のアップロード・一覧・取得・削除を単一のAPIとして公開する。
// Blobストアとメタデータカタログは別サービスで共有トランザクションを
// 持たないため、呼び出し順序と補償アクションで両者の整合を保つのが
// 本パッケージの中心的な責務となる。
package gateway
