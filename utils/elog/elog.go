package elog

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Level is the severity of a report, ordered as in the backend.
type Level int

const (
	DEBUG Level = iota
	LOG
	WARNING
	ERROR
	FATAL
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case LOG:
		return "LOG"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// SQLState is a five character error code.
type SQLState string

const (
	ErrCodeInternalError      SQLState = "XX000"
	ErrCodeDataCorrupted      SQLState = "XX001"
	ErrCodeOutOfMemory        SQLState = "53200"
	ErrCodeUndefinedObject    SQLState = "42704"
	ErrCodeUndefinedTable     SQLState = "42P01"
	ErrCodeDuplicateObject    SQLState = "42710"
	ErrCodeInvalidParameter   SQLState = "22023"
	ErrCodeInvalidText        SQLState = "22P02"
	ErrCodeInvalidName        SQLState = "42602"
	ErrCodeObjectInUse        SQLState = "55006"
	ErrCodeProgramLimitExceed SQLState = "54000"
)

// Error is a report raised at ERROR level or above. Raising one unwinds the
// stack with panic; Try turns it back into an error value.
type Error struct {
	Level   Level
	Code    SQLState
	Message string
	Detail  string
	Cause   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Level.String())
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Detail != "" {
		b.WriteString(" (")
		b.WriteString(e.Detail)
		b.WriteByte(')')
	}
	if e.Cause != nil && e.Cause.Error() != e.Message {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Errorf builds an ERROR-level report without raising it.
func Errorf(code SQLState, format string, args ...any) *Error {
	cause := errors.Newf(format, args...)
	return &Error{
		Level:   ERROR,
		Code:    code,
		Message: cause.Error(),
		Cause:   cause,
	}
}

// Wrap attaches a SQLSTATE and a message to err. A nil err gives nil.
func Wrap(err error, code SQLState, msg string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Level:   ERROR,
		Code:    code,
		Message: msg,
		Cause:   errors.Wrap(err, msg),
	}
}

// WithDetail sets the detail line and returns e.
func (e *Error) WithDetail(format string, args ...any) *Error {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// CodeOf returns the SQLSTATE carried by err, or ErrCodeInternalError.
func CodeOf(err error) SQLState {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternalError
}

// Ereport logs a report and, for ERROR and above, raises it.
func Ereport(level Level, code SQLState, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fields := []zap.Field{zap.String("sqlstate", string(code))}
	switch {
	case level <= DEBUG:
		Logger().Debug(msg, fields...)
	case level == LOG:
		Logger().Info(msg, fields...)
	case level == WARNING:
		Logger().Warn(msg, fields...)
	default:
		Logger().Error(msg, fields...)
		e := Errorf(code, "%s", msg)
		e.Level = level
		panic(e)
	}
}

// Throw raises an already built report.
func Throw(e *Error) {
	Logger().Error(e.Message, zap.String("sqlstate", string(e.Code)), zap.String("detail", e.Detail))
	panic(e)
}

// Try runs fn and returns any *Error it raised. Other panics, including
// failed assertions, keep unwinding.
func Try(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(*Error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()
	fn()
	return nil
}
