// Package apperr classifies domain errors so handlers can map them to an
// HTTP status and a message that is safe to show.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	Invalid      Kind = "invalid"
	NotFound     Kind = "not_found"
	Unauthorized Kind = "unauthorized"
	Conflict     Kind = "conflict"
	TooLarge     Kind = "too_large"
	Internal     Kind = "internal"
)

const internalMessage = "Unexpected error"

type AppError struct {
	Kind      Kind
	PublicMsg string
	Err       error // internal cause, logged only
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.PublicMsg, e.Err)
	}
	if e.PublicMsg != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.PublicMsg)
	}
	return string(e.Kind)
}

func (e *AppError) Unwrap() error { return e.Err }

func InvalidErr(publicMsg string) *AppError {
	return &AppError{Kind: Invalid, PublicMsg: publicMsg}
}

func InvalidErrf(format string, args ...interface{}) *AppError {
	return &AppError{Kind: Invalid, PublicMsg: fmt.Sprintf(format, args...)}
}

func NotFoundErr(publicMsg string) *AppError {
	return &AppError{Kind: NotFound, PublicMsg: publicMsg}
}

func UnauthorizedErr(publicMsg string) *AppError {
	return &AppError{Kind: Unauthorized, PublicMsg: publicMsg}
}

func ConflictErr(publicMsg string) *AppError {
	return &AppError{Kind: Conflict, PublicMsg: publicMsg}
}

func TooLargeErr(publicMsg string) *AppError {
	return &AppError{Kind: TooLarge, PublicMsg: publicMsg}
}

// Wrap hides err behind the generic internal message.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Kind: Internal, PublicMsg: internalMessage, Err: err}
}

func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func Is(err error, kind Kind) bool {
	ae, ok := As(err)
	return ok && ae.Kind == kind
}

func HTTPStatus(err error) int {
	if ae, ok := As(err); ok {
		switch ae.Kind {
		case Invalid:
			return http.StatusBadRequest
		case Unauthorized:
			return http.StatusUnauthorized
		case NotFound:
			return http.StatusNotFound
		case Conflict:
			return http.StatusConflict
		case TooLarge:
			return http.StatusRequestEntityTooLarge
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}

func PublicMessage(err error) string {
	if ae, ok := As(err); ok && ae.PublicMsg != "" {
		return ae.PublicMsg
	}
	return internalMessage
}
