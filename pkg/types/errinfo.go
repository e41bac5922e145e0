package types

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

// stackTracer is implemented by errors created or wrapped with github.com/pkg/errors.
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// NewErrorInfo converts err into the structured form carried by LogEntry.
// The stack is taken from the deepest pkg/errors stack trace in the chain, if any.
// It returns nil for a nil error.
func NewErrorInfo(err error) *ErrorInfo {
	if err == nil {
		return nil
	}

	info := &ErrorInfo{
		Name:    errorName(errors.Cause(err)),
		Message: err.Error(),
	}

	var tracer stackTracer
	for e := err; e != nil; e = errors.Unwrap(e) {
		if st, ok := e.(stackTracer); ok {
			tracer = st
		}
	}
	if tracer != nil {
		info.Stack = strings.TrimSpace(fmt.Sprintf("%+v", tracer.StackTrace()))
	}

	return info
}

func errorName(err error) string {
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Name() == "" {
		return t.String()
	}
	return t.Name()
}
