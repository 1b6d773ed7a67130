// Package auth は認証サービスの内部実装を提供する。
//
// GatewayからBearerトークンを受け取り、検証済みのユーザーIDと
// セッションIDを返す。トークンはHS256署名のJWTで、開発用の
// トークン発行エンドポイントも提供する。
// Gatewayから見た場合、本サービスはステートレスな検証器として振る舞う。
package auth
