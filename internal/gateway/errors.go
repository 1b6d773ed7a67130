package gateway

import (
	"errors"
	"net/http"

	"github.com/nao1215/photure/pkg/httpclient"
)

// Kind はオーケストレーションで発生するエラーの分類。
// 補償処理の要否とクライアントに返すHTTPステータスの決定に使用する。
type Kind int

const (
	// KindAuthentication は認証情報の欠落または不正を表す（401）。
	KindAuthentication Kind = iota + 1
	// KindValidation はリクエスト内容の事前検証エラーを表す（400）。
	KindValidation
	// KindPayloadTooLarge はアップロードサイズの上限超過を表す（413）。
	KindPayloadTooLarge
	// KindNotFound はレコードの不在を表す（404）。
	// 他人のレコードへのアクセスも同じ分類にし、存在を漏らさない。
	KindNotFound
	// KindUnavailable はリーフサービスに到達できなかったことを表す（503）。
	// 相手が拒否した場合（KindUpstream）とは区別する。
	KindUnavailable
	// KindUpstream はリーフサービスが非成功ステータスを返したことを表す。
	// 上流のステータスとメッセージをそのまま伝播する。
	KindUpstream
	// KindInconsistent は有効なレコードに対応するBlobを取得できなかった
	// ことを表す（500）。運用者の追跡用にIDとストレージキーをログに残す。
	KindInconsistent
)

// Error はオーケストレーションのエラー。分類と上流メッセージを保持する。
type Error struct {
	// Kind はエラーの分類。
	Kind Kind
	// UpstreamStatus は KindUpstream の場合に上流が返したHTTPステータス。
	UpstreamStatus int
	// Message はクライアントに返すエラーメッセージ。
	// 上流のメッセージが得られた場合はそれをそのまま使用する。
	Message string
}

// Error はエラーメッセージを返す。
func (e *Error) Error() string {
	return e.Message
}

// HTTPStatus は分類に対応するHTTPステータスコードを返す。
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusBadRequest
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindNotFound:
		return http.StatusNotFound
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindUpstream:
		return e.UpstreamStatus
	default:
		return http.StatusInternalServerError
	}
}

// newError は分類とメッセージからエラーを生成する。
func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// leafError はリーフサービス呼び出しのエラーをオーケストレーションの
// エラーに変換する。接続エラー（タイムアウト含む）はKindUnavailableとして
// unavailableMessageを返し、上流の応答エラーはステータスに応じて分類する。
func leafError(err error, unavailableMessage string) *Error {
	var statusErr *httpclient.StatusError
	if !errors.As(err, &statusErr) {
		return newError(KindUnavailable, unavailableMessage)
	}

	switch statusErr.StatusCode {
	case http.StatusNotFound:
		return newError(KindNotFound, statusErr.Message)
	case http.StatusRequestEntityTooLarge:
		return newError(KindPayloadTooLarge, statusErr.Message)
	default:
		return &Error{
			Kind:           KindUpstream,
			UpstreamStatus: statusErr.StatusCode,
			Message:        statusErr.Message,
		}
	}
}
