package compilatio

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
)

var (
	// ErrStatusNotFound is returned when a response does not carry status.code and status.message.
	ErrStatusNotFound = errors.New("request response's status not found")
	// ErrInvalidIndexingState is returned for indexing values other than the accepted boolean forms.
	ErrInvalidIndexingState = errors.New("Invalid parameter : indexing state is not a boolean")
	// ErrLightReportMissing is returned when a finished analysis has no light report to read the score from.
	ErrLightReportMissing = errors.New("finished analysis has no light report")
	// ErrUnknownAnalysisState is returned for analysis states outside the documented lifecycle.
	ErrUnknownAnalysisState = errors.New("unknown analysis state")
)

// ParamError reports a parameter rejected before any request was sent.
type ParamError struct {
	Name   string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("Invalid parameter : '%s' is %s", e.Name, e.Reason)
}

// APIError carries a non-success status returned by the service. The message is the
// server's own and is returned verbatim by Error.
type APIError struct {
	Op      string
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsParamError reports whether err is (or wraps) a *ParamError.
func IsParamError(err error) bool {
	var pe *ParamError
	return errors.As(err, &pe)
}

// ValidateString checks that v is defined, not empty and a string.
func ValidateString(v any, name string) error {
	if isUndefined(v) {
		return &ParamError{Name: name, Reason: "not defined"}
	}
	if isEmpty(v) {
		return &ParamError{Name: name, Reason: "empty"}
	}
	switch v.(type) {
	case string, *string:
		return nil
	}
	return &ParamError{Name: name, Reason: "not a string"}
}

// ValidateInt checks that v is defined, not zero and an integer. Integral float64
// values are accepted since that is what encoding/json produces for numbers.
func ValidateInt(v any, name string) error {
	if isUndefined(v) {
		return &ParamError{Name: name, Reason: "not defined"}
	}
	if isEmpty(v) {
		return &ParamError{Name: name, Reason: "empty"}
	}
	if _, ok := asInt(v); ok {
		return nil
	}
	return &ParamError{Name: name, Reason: "not an int"}
}

// ParseIndexingState converts an indexing flag. Only booleans and the strings
// "0", "1", "false" and "true" are accepted.
func ParseIndexingState(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		switch x {
		case "1", "true":
			return true, nil
		case "0", "false":
			return false, nil
		}
	}
	return false, ErrInvalidIndexingState
}

func isUndefined(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

func isEmpty(v any) bool {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.String:
		return rv.String() == ""
	}
	return rv.IsZero()
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int32:
		return int(x), true
	case int64:
		return int(x), true
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return int(x), true
		}
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return int(n), true
		}
	}
	return 0, false
}
