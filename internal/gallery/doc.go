// Package gallery はギャラリーサービスの内部実装を提供する。
//
// 写真メタデータ（PhotoRecord）をSQLiteで永続化し、所有者スコープの
// 作成・一覧・取得・削除を提供する。レコードはストレージキーを介して
// メディアサービスのBlobを1:1で参照し、どのBlobが有効かの
// 真実の情報源（source of truth）となる。
// 所有者の識別は X-User-Id ヘッダーで受け取る（内部サービスのため
// Gatewayを信頼する）。
package gallery
