// Package apperr описывает таксономию ошибок жизненного цикла.
//
// Каждая ошибка несёт Kind, по которому клиент решает, повторять ли запрос,
// просить исправить ввод или эскалировать. Сравнение выполняется через errors.Is
// с одной из переменных Err*: совпадение определяется только по Kind.
package apperr

import (
	"errors"
	"fmt"
)

// Kind вид ошибки.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindInvalidState    Kind = "invalid_state"
	KindQuotaExceeded   Kind = "quota_exceeded"
	KindForbidden       Kind = "forbidden"
	KindPartialFailure  Kind = "partial_failure"
	KindUnauthenticated Kind = "unauthenticated"
)

// Error ошибка с видом, операцией и сообщением для клиента.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrInvalidState    = &Error{Kind: KindInvalidState}
	ErrQuotaExceeded   = &Error{Kind: KindQuotaExceeded}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrPartialFailure  = &Error{Kind: KindPartialFailure}
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
)

// New создаёт ошибку заданного вида.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap создаёт ошибку заданного вида поверх исходной.
func Wrap(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is сравнивает ошибки по Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf возвращает вид первой ошибки apperr в цепочке или пустую строку.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Message возвращает сообщение для клиента.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return "internal service error"
}
