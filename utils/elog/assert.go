package elog

import (
	"runtime"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Assert panics with an assertion failure when cond is false. Assertions
// guard host invariants; they are never recovered by Try.
func Assert(cond bool, msg string) {
	if !cond {
		_, file, line, ok := runtime.Caller(1)
		if ok {
			Logger().Error("assertion failed", zap.String("file", file), zap.Int("line", line), zap.String("msg", msg))
		} else {
			Logger().Error("assertion failed", zap.String("msg", msg))
		}
		panic(errors.AssertionFailedf("%s", msg))
	}
}

// SoftAssert only logs.
func SoftAssert(cond bool, msg string) {
	if !cond {
		_, file, line, ok := runtime.Caller(1)
		if ok {
			Logger().Warn("assertion failed", zap.String("file", file), zap.Int("line", line), zap.String("msg", msg))
		} else {
			Logger().Warn("assertion failed", zap.String("msg", msg))
		}
	}
}

// IsAssertionFailure reports whether a recovered panic value came from Assert.
func IsAssertionFailure(r any) bool {
	err, ok := r.(error)
	return ok && errors.HasAssertionFailure(err)
}
