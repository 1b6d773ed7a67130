// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// パニックリカバリとCORS設定を含む。外部に公開されるのはGatewayのみだが、
// リカバリは全サービスで共通して使用する。
package middleware
