package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// requestTimeout はリーフサービスへの1リクエストあたりのタイムアウト。
// 超過した場合は接続エラーと同様に扱う。
const requestTimeout = 30 * time.Second

// StatusError はリーフサービスが2xx以外のステータスを返したことを表す。
// 接続エラー（サービス到達不能）とは区別され、上流のステータスと
// エラーメッセージをそのまま保持する。
type StatusError struct {
	// StatusCode は上流サービスが返したHTTPステータスコード。
	StatusCode int
	// Message は上流サービスが返したエラーメッセージ。
	Message string
}

// Error はエラーメッセージを返す。
func (e *StatusError) Error() string {
	return fmt.Sprintf("上流サービスエラー: status=%d, message=%s", e.StatusCode, e.Message)
}

// Client はサービス間通信用のHTTPクライアント。
// 接続プールを共有するため、複数のClientで同一の http.Client を使い回せる。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先サービスのベースURL。
	baseURL string
}

// New は新しいサービス間通信用HTTPクライアントを生成する。
// baseURLには接続先サービスのベースURL（例: "http://media-service:8030"）を指定する。
func New(baseURL string) *Client {
	return NewWithHTTPClient(&http.Client{Timeout: requestTimeout}, baseURL)
}

// NewWithHTTPClient は既存の http.Client を共有する通信クライアントを生成する。
// プロセス全体で1つの接続プールを共有したい場合に使用する。
func NewWithHTTPClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

// PostJSON は指定パスにJSONボディでPOSTリクエストを送信する。
// レスポンスボディをresultにデシリアライズする。
func (c *Client) PostJSON(ctx context.Context, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのシリアライズに失敗: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}
	return c.do(ctx, http.MethodPost, path, "application/json", bodyReader, result)
}

// GetJSON は指定パスにGETリクエストを送信する。
// レスポンスボディをresultにデシリアライズする。
func (c *Client) GetJSON(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodGet, path, "", nil, result)
}

// DeleteJSON は指定パスにDELETEリクエストを送信する。
// レスポンスボディをresultにデシリアライズする。resultがnilの場合は読み捨てる。
func (c *Client) DeleteJSON(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodDelete, path, "", nil, result)
}

// PostMultipartFile は指定パスにファイル1つをマルチパートフォームでPOSTする。
// fieldNameはフォームのフィールド名、contentTypeはファイルパートのMIMEタイプ。
func (c *Client) PostMultipartFile(ctx context.Context, path, fieldName, filename, contentType string, data []byte, result any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fieldName, escapeQuotes(filename)))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("マルチパートの作成に失敗: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("マルチパートの書き込みに失敗: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("マルチパートの終端処理に失敗: %w", err)
	}

	return c.do(ctx, http.MethodPost, path, writer.FormDataContentType(), &buf, result)
}

// GetBytes は指定パスにGETリクエストを送信し、レスポンスボディをそのまま返す。
// メディアファイルのようなバイナリの取得に使用する。
func (c *Client) GetBytes(ctx context.Context, path string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newStatusError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗: %w", err)
	}
	return data, nil
}

// do はHTTPリクエストを実行する共通処理。
// 2xx以外のステータスは *StatusError として返す。
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, result any) error {
	req, err := c.newRequest(ctx, method, path, contentType, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newStatusError(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
		}
	}
	return nil
}

// newRequest はコンテキストのユーザーID・認証情報を伝播したリクエストを作成する。
func (c *Client) newRequest(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Request, error) {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	// コンテキストからユーザーIDと認証ヘッダーを伝播する
	if userID, ok := ctx.Value(contextKeyUserID).(string); ok {
		req.Header.Set("X-User-Id", userID)
	}
	if auth, ok := ctx.Value(contextKeyAuthorization).(string); ok {
		req.Header.Set("Authorization", auth)
	}
	return req, nil
}

// newStatusError は2xx以外のレスポンスから *StatusError を組み立てる。
// ボディが {"error": "..."} 形式のJSONであればメッセージを取り出す。
func newStatusError(resp *http.Response) *StatusError {
	respBody, _ := io.ReadAll(resp.Body)

	var errBody struct {
		Error string `json:"error"`
	}
	message := strings.TrimSpace(string(respBody))
	if err := json.Unmarshal(respBody, &errBody); err == nil && errBody.Error != "" {
		message = errBody.Error
	}

	return &StatusError{
		StatusCode: resp.StatusCode,
		Message:    message,
	}
}

// escapeQuotes はContent-Dispositionヘッダー用にダブルクォートをエスケープする。
func escapeQuotes(s string) string {
	r := strings.NewReplacer("\\", "\\\\", `"`, "\\\"")
	return r.Replace(s)
}

// contextKey はコンテキストキーの型。
type contextKey string

const (
	// contextKeyUserID はコンテキストにユーザーIDを格納するためのキー。
	contextKeyUserID contextKey = "user_id"
	// contextKeyAuthorization はコンテキストに認証ヘッダーを格納するためのキー。
	contextKeyAuthorization contextKey = "authorization"
)

// WithUserID はコンテキストにユーザーIDを設定する。
// サービス間通信時に X-User-Id ヘッダーとして伝播される。
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKeyUserID, userID)
}

// WithAuthorization はコンテキストにAuthorizationヘッダーの値を設定する。
// 認証サービスへのトークン転送に使用する。
func WithAuthorization(ctx context.Context, value string) context.Context {
	return context.WithValue(ctx, contextKeyAuthorization, value)
}
