package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind 区分错误类别，决定调用方如何处理。
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindAuthorization Kind = "authorization"
	KindIneligible    Kind = "ineligible"
	KindDuplicate     Kind = "duplicate"
	KindSideEffect    Kind = "side_effect"
	KindInternal      Kind = "internal"
)

// Error 是业务层统一错误，Reasons 仅在资格校验失败时携带全部原因。
type Error struct {
	Kind    Kind
	Message string
	Reasons []string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if len(e.Reasons) > 0 {
		msg += ": " + strings.Join(e.Reasons, "; ")
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is 让 errors.Is 可以按 Kind 匹配。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// 仅用于 errors.Is 比较的哨兵值。
var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrAuthorization = &Error{Kind: KindAuthorization}
	ErrIneligible    = &Error{Kind: KindIneligible}
	ErrDuplicate     = &Error{Kind: KindDuplicate}
)

func Validation(msg string) error { return &Error{Kind: KindValidation, Message: msg} }

func NotFound(msg string, err error) error {
	return &Error{Kind: KindNotFound, Message: msg, Err: err}
}

func Authorization(msg string) error { return &Error{Kind: KindAuthorization, Message: msg} }

func Duplicate(msg string, err error) error {
	return &Error{Kind: KindDuplicate, Message: msg, Err: err}
}

// Ineligible 携带资格校验失败的完整原因列表。
func Ineligible(reasons []string) error {
	return &Error{Kind: KindIneligible, Message: "student is not eligible", Reasons: append([]string(nil), reasons...)}
}

func SideEffect(task string, err error) error {
	return &Error{Kind: KindSideEffect, Message: task + " failed", Err: err}
}

// KindOf 返回错误链上第一个业务错误的类别，未知错误视为 internal。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ReasonsOf 返回资格失败原因，非该类错误返回 nil。
func ReasonsOf(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reasons
	}
	return nil
}

// HTTPStatus 将错误类别映射到 HTTP 状态码。
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuthorization:
		return http.StatusForbidden
	case KindIneligible:
		return http.StatusUnprocessableEntity
	case KindDuplicate:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
