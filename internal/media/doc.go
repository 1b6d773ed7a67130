// Package media はメディアサービスの内部実装を提供する。
//
// 画像ファイルのバイナリをディスクに保存し、サーバーが採番する
// ストレージキーで取得・削除する単純なBlobストア。
// どのBlobが有効かの判断はギャラリーサービスのメタデータが担い、
// 本サービスはキーに対するCRUDのみを提供する。
package media
