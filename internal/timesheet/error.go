package timesheet

import (
	"errors"
	"fmt"
	"net/http"

	"facialtimesheet-backend/internal/mood"
)

// ===== Error model（code + message、HTTPステータスへ写像） =====

type Code string

const (
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeNotFound         Code = "NOT_FOUND"
	CodeConflict         Code = "CONFLICT" // 状態遷移違反
	CodeUpstreamFailed   Code = "UPSTREAM_FAILED"
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"
	CodeInternal         Code = "INTERNAL"
)

type APIError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func ErrInvalid(msg string) *APIError { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError {
	return &APIError{Code: CodeNotFound, Message: msg}
}

// ErrTransition: 現在の状態から許可されない操作
func ErrTransition(msg string) *APIError { return &APIError{Code: CodeConflict, Message: msg} }
func ErrUpstream(msg string) *APIError {
	return &APIError{Code: CodeUpstreamFailed, Message: msg}
}
func ErrStore(msg string) *APIError {
	return &APIError{Code: CodeStoreUnavailable, Message: msg}
}
func ErrInternal(msg string) *APIError { return &APIError{Code: CodeInternal, Message: msg} }

func ToHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return http.StatusBadRequest
		case CodeNotFound:
			return http.StatusNotFound
		case CodeConflict:
			return http.StatusConflict
		case CodeUpstreamFailed:
			return http.StatusBadGateway
		case CodeStoreUnavailable:
			return http.StatusServiceUnavailable
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}

// fromInferError: アダプタの型付きエラーをAPIエラーへ写像する。
// 画像不正は呼び出し側の再撮影で回復、それ以外は推論失敗（状態は遷移しない）。
func fromInferError(err error) *APIError {
	var ie *mood.InferError
	if errors.As(err, &ie) {
		switch ie.Kind {
		case mood.KindInvalidImage:
			return ErrInvalid(ie.Message)
		case mood.KindTimeout, mood.KindUnavailable:
			return ErrUpstream(ie.Message)
		}
	}
	return ErrUpstream(err.Error())
}
