package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Reserved error codes. The range -32000 to -32099 is reserved for
// implementation-defined server errors; only CodeServerError is used from it.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeServerError    = -32000
)

// Exception describes a failed method call.
//
// It is an open record: Message is required, Code and Data are optional, and
// Extra carries any further members that are copied onto the error object
// returned to the client.
type Exception struct {
	Message string
	Code    *int
	Data    any
	Extra   map[string]any

	// hasData marks data as present even when it is nil.
	hasData bool
}

// NewException returns an exception with the given message and no code.
func NewException(message string) *Exception {
	return &Exception{Message: message}
}

// NewError returns an exception carrying an explicit code.
func NewError(code int, message string) *Exception {
	return NewException(message).WithCode(code)
}

func (e *Exception) Error() string {
	return e.Message
}

// WithCode sets the code and returns e.
func (e *Exception) WithCode(code int) *Exception {
	e.Code = &code
	return e
}

// WithData sets the data member and returns e. A nil data is still written
// as null.
func (e *Exception) WithData(data any) *Exception {
	e.Data = data
	e.hasData = true
	return e
}

// With sets a member and returns e. The message, code and data keys set the
// matching fields: a non-string message is formatted with fmt.Sprint, and a
// code must be an integral number of any Go numeric type or a json.Number.
// A code that is not integral, or a nil message, leaves the field unchanged.
// Other keys go to Extra.
func (e *Exception) With(key string, value any) *Exception {
	switch key {
	case "message":
		switch v := value.(type) {
		case nil:
		case string:
			e.Message = v
		default:
			e.Message = fmt.Sprint(v)
		}
		return e
	case "code":
		if c, ok := intCode(value); ok {
			e.WithCode(c)
		}
		return e
	case "data":
		return e.WithData(value)
	}
	if e.Extra == nil {
		e.Extra = make(map[string]any)
	}
	e.Extra[key] = value
	return e
}

// intCode converts an integral numeric value to an int.
func intCode(v any) (int, bool) {
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return intCode(i)
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return intCode(f)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := rv.Int()
		if i < math.MinInt || i > math.MaxInt {
			return 0, false
		}
		return int(i), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt {
			return 0, false
		}
		return int(u), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		// NaN fails the Trunc comparison; infinities fail the range check.
		if f != math.Trunc(f) || f < math.MinInt || f >= -math.MinInt {
			return 0, false
		}
		return int(f), true
	}
	return 0, false
}

// AsException converts any error returned by a registry into an Exception.
// Errors that wrap an *Exception are unwrapped; others keep only their message.
func AsException(err error) *Exception {
	if err == nil {
		return nil
	}
	var exc *Exception
	if errors.As(err, &exc) && exc != nil {
		return exc
	}
	return NewException(err.Error())
}

// Error is the error member of a response envelope.
type Error struct {
	Code    int
	Message string
	Data    any
	Extra   map[string]any

	// hasData marks data as present even when it is nil.
	hasData bool
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) fields() map[string]any {
	m := make(map[string]any, len(e.Extra)+3)
	for k, v := range e.Extra {
		m[k] = v
	}
	m["code"] = e.Code
	m["message"] = e.Message
	if e.Data != nil || e.hasData {
		m["data"] = e.Data
	}
	return m
}

func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.fields())
}

func (e *Error) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(e.fields())
}

// Response is a single response envelope. Exactly one of Result and Error is
// written: Error when it is non-nil, Result otherwise (possibly null).
type Response struct {
	ID     any
	Result any
	Error  *Error
}

type successEnvelope struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result"`
}

type errorEnvelope struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Error   *Error `json:"error"`
}

func (r *Response) envelope() any {
	if r.Error != nil {
		return errorEnvelope{JSONRPC: Version, ID: r.ID, Error: r.Error}
	}
	return successEnvelope{JSONRPC: Version, ID: r.ID, Result: r.Result}
}

func (r *Response) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.envelope())
}

func (r *Response) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(r.envelope())
}
