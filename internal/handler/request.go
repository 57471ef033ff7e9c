package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/hitoshi/citizenai/internal/credential"
	"github.com/hitoshi/citizenai/internal/model"
)

// maxBodyBytes はリクエストボディの上限サイズ。
const maxBodyBytes = 64 << 10

// RegisterRequest はユーザー登録リクエスト。すべて必須。
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Validate は必須項目を検証する。
func (req *RegisterRequest) Validate() error {
	req.Email = strings.TrimSpace(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)

	var missing []string
	if req.Email == "" {
		missing = append(missing, "email")
	}
	if req.Password == "" {
		missing = append(missing, "password")
	}
	if req.FirstName == "" {
		missing = append(missing, "first_name")
	}
	if req.LastName == "" {
		missing = append(missing, "last_name")
	}
	if len(missing) > 0 {
		return model.NewInvalidRequestError("missing required fields: " + strings.Join(missing, ", "))
	}
	if !strings.Contains(req.Email, "@") {
		return model.NewInvalidRequestError("email must be an email address")
	}
	return nil
}

// Input はcredential.RegisterInputに変換する。
func (req *RegisterRequest) Input() credential.RegisterInput {
	return credential.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
}

// LoginRequest はログインリクエスト。すべて必須。
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate は必須項目を検証する。
func (req *LoginRequest) Validate() error {
	req.Email = strings.TrimSpace(req.Email)

	var missing []string
	if req.Email == "" {
		missing = append(missing, "email")
	}
	if req.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return model.NewInvalidRequestError("missing required fields: " + strings.Join(missing, ", "))
	}
	return nil
}

// ChatRequest はチャット送信リクエスト。
// messageが未指定の場合は空文字列として扱い、空判定はChatGatewayに委ねる。
type ChatRequest struct {
	Message string `json:"message"`
}

// Validate は何もしない。空メッセージの判定はゲートウェイで行う。
func (req *ChatRequest) Validate() error {
	return nil
}

// FeedbackRequest はフィードバック送信リクエスト。
// sentiment/concernは任意で、JSONのスカラー値またはnullを受け付ける。
type FeedbackRequest struct {
	Sentiment json.RawMessage `json:"sentiment"`
	Concern   json.RawMessage `json:"concern"`
}

// Validate はsentiment/concernがオブジェクトや配列でないことを検証する。
func (req *FeedbackRequest) Validate() error {
	if !isScalar(req.Sentiment) {
		return model.NewInvalidRequestError("sentiment must be a string, number, boolean or null")
	}
	if !isScalar(req.Concern) {
		return model.NewInvalidRequestError("concern must be a string, number, boolean or null")
	}
	return nil
}

// isScalar は未指定またはJSONスカラー値の場合にtrueを返す。
func isScalar(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return true
	}
	switch trimmed[0] {
	case '{', '[':
		return false
	default:
		return true
	}
}

// validator はリクエストスキーマの検証インターフェース。
type validator interface {
	Validate() error
}

// decodeJSON はJSONボディをdstにデコードして検証する。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst validator) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return model.NewInvalidRequestError("request body is empty")
		case errors.As(err, &maxErr):
			return model.NewInvalidRequestError(fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
		default:
			return model.NewInvalidRequestError("malformed JSON body")
		}
	}
	if dec.More() {
		return model.NewInvalidRequestError("request body must contain a single JSON object")
	}

	return dst.Validate()
}

// decodeCredentials はJSONまたはフォームのボディを読み取る。
// フォームの場合は各フィールドの値をsetで設定する。
func decodeCredentials(w http.ResponseWriter, r *http.Request, dst validator, set func(key, value string)) error {
	if !isFormRequest(r) {
		return decodeJSON(w, r, dst)
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		err = r.ParseMultipartForm(maxBodyBytes)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return model.NewInvalidRequestError("malformed form body")
	}
	for key := range r.PostForm {
		set(key, r.PostForm.Get(key))
	}
	return dst.Validate()
}

// isFormRequest はContent-Typeがフォーム形式かを判定する。
func isFormRequest(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data"
}
