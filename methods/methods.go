// Package methods provides a jsonrpc.MethodRegistry that maps method names
// to Go functions.
//
// Handlers are added either as plain functions with Set:
//
//	m := methods.New()
//	m.Set("ping", func(ctx context.Context, req jsonrpc.Request) (any, error) {
//	    return "pong", nil
//	})
//
// or by registering the exported methods of a receiver:
//
//	m.Register("math", &MathMethods{}) // -> "math.Add", "math.Sub", ...
//
// A registered method may take an optional leading context.Context followed
// by any number of parameters, and may return nothing, a result, an error,
// or a result and an error:
//
//	func (m *MathMethods) Add(ctx context.Context, a, b int) (int, error)
//	func (m *MathMethods) Sum(p SumParams) int
//
// Positional params (a JSON array) fill the parameters in order. Named
// params (a JSON object) require a single struct or map parameter and are
// matched to fields by their json tag. A single struct parameter may also
// receive positional params, which then fill its fields in declaration order.
// Fields tagged ",omitempty" are optional in named params; all others are
// required.
//
// A struct parameter may rename the method with a `jsonrpc` tag on a blank
// field:
//
//	type AddParams struct {
//	    _ struct{} `jsonrpc:"add"` // registered as "math.add"
//	    A int      `json:"a"`
//	    B int      `json:"b"`
//	}
//
// Unknown methods fail with a "Not Found" exception and undecodable params
// with "Bad Request", which jsonrpc.Classifier maps to -32601 and -32602.
package methods

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"

	"github.com/mnehpets/onerpc/jsonrpc"
)

// HandlerFunc handles a request directly, with no parameter decoding.
type HandlerFunc func(ctx context.Context, req jsonrpc.Request) (any, error)

// Methods is a registry of named methods. It is safe for concurrent use.
type Methods struct {
	mu      sync.RWMutex
	methods map[string]HandlerFunc
}

// New creates an empty registry.
func New() *Methods {
	return &Methods{methods: make(map[string]HandlerFunc)}
}

// Set adds or replaces the handler for name.
func (m *Methods) Set(name string, fn HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.methods[name] = fn
}

// Register adds the exported methods of receiver whose signatures are usable.
// The namespace prefixes every name with a dot separator; an empty namespace
// uses the method names directly. It panics if a name is already taken.
func (m *Methods) Register(namespace string, receiver any) {
	val := reflect.ValueOf(receiver)
	typ := val.Type()

	for i := 0; i < typ.NumMethod(); i++ {
		rm := typ.Method(i)
		if !rm.IsExported() {
			continue
		}
		meth, ok := parseMethod(rm.Name, val.Method(i))
		if !ok {
			continue
		}

		name := meth.name
		if namespace != "" {
			name = namespace + "." + name
		}

		m.mu.Lock()
		if _, exists := m.methods[name]; exists {
			m.mu.Unlock()
			panic("methods: method name collision: " + name)
		}
		m.methods[name] = meth.call
		m.mu.Unlock()
	}
}

// Names returns the registered method names in sorted order.
func (m *Methods) Names() []string {
	m.mu.RLock()
	names := make([]string, 0, len(m.methods))
	for name := range m.methods {
		names = append(names, name)
	}
	m.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Call implements jsonrpc.MethodRegistry.
func (m *Methods) Call(ctx context.Context, req jsonrpc.Request) (any, error) {
	m.mu.RLock()
	fn, ok := m.methods[req.Method]
	m.mu.RUnlock()

	if !ok {
		return nil, jsonrpc.NewException("Not Found").WithData(req.Method)
	}
	return fn(ctx, req)
}

var _ jsonrpc.MethodRegistry = (*Methods)(nil)

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// method holds reflection data for a registered method.
type method struct {
	name      string
	fn        reflect.Value
	hasCtx    bool
	params    []reflect.Type
	hasResult bool
	hasErr    bool

	// fieldNames and fieldIndex describe a single struct parameter.
	fieldNames []string
	fieldIndex []int
	required   map[string]bool
}

// parseMethod extracts signature information from a bound method value.
// It reports false for signatures that cannot be called over RPC.
func parseMethod(name string, fn reflect.Value) (*method, bool) {
	ft := fn.Type()
	meth := &method{name: name, fn: fn}

	in := 0
	if ft.NumIn() > 0 && ft.In(0) == contextType {
		meth.hasCtx = true
		in = 1
	}
	if ft.IsVariadic() {
		return nil, false
	}
	for ; in < ft.NumIn(); in++ {
		pt := ft.In(in)
		switch pt.Kind() {
		case reflect.Func, reflect.Chan, reflect.UnsafePointer:
			return nil, false
		}
		meth.params = append(meth.params, pt)
	}

	switch ft.NumOut() {
	case 0:
	case 1:
		if ft.Out(0) == errorType {
			meth.hasErr = true
		} else {
			meth.hasResult = true
		}
	case 2:
		if ft.Out(1) != errorType {
			return nil, false
		}
		meth.hasResult = true
		meth.hasErr = true
	default:
		return nil, false
	}

	if st, ok := meth.structParam(); ok {
		meth.required = make(map[string]bool)
		for i := 0; i < st.NumField(); i++ {
			field := st.Field(i)
			if field.Name == "_" {
				if tag := field.Tag.Get("jsonrpc"); tag != "" {
					meth.name = tag
				}
				continue
			}
			if !field.IsExported() {
				continue
			}
			fieldName, opts, _ := strings.Cut(field.Tag.Get("json"), ",")
			if fieldName == "-" {
				continue
			}
			if fieldName == "" {
				fieldName = field.Name
			}
			meth.fieldNames = append(meth.fieldNames, fieldName)
			meth.fieldIndex = append(meth.fieldIndex, i)
			meth.required[fieldName] = !strings.Contains(opts, "omitempty")
		}
	}
	return meth, true
}

// structParam returns the struct type when the method takes exactly one
// struct (or pointer to struct) parameter.
func (m *method) structParam() (reflect.Type, bool) {
	if len(m.params) != 1 {
		return nil, false
	}
	t := m.params[0]
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t, t.Kind() == reflect.Struct
}

func (m *method) call(ctx context.Context, req jsonrpc.Request) (any, error) {
	args, err := m.decodeArgs(req.Params)
	if err != nil {
		return nil, jsonrpc.NewException("Bad Request").WithData(err.Error())
	}
	if m.hasCtx {
		args = append([]reflect.Value{reflect.ValueOf(ctx)}, args...)
	}

	out := m.fn.Call(args)

	var result any
	if m.hasResult {
		result = out[0].Interface()
	}
	if m.hasErr {
		if errVal := out[len(out)-1]; !errVal.IsNil() {
			return nil, errVal.Interface().(error)
		}
	}
	return result, nil
}

func (m *method) decodeArgs(params any) ([]reflect.Value, error) {
	_, single := m.structParam()

	switch p := params.(type) {
	case nil:
		if single {
			return m.decodeNamed(map[string]any{})
		}
		return m.decodePositional(nil)
	case []any:
		if single && !(len(p) == 1 && isObject(p[0])) {
			return m.decodeFields(p)
		}
		return m.decodePositional(p)
	case map[string]any:
		if single {
			return m.decodeNamed(p)
		}
		if len(m.params) == 1 && m.params[0].Kind() == reflect.Map {
			return m.decodePositional([]any{p})
		}
		return nil, fmt.Errorf("named params require a single struct parameter")
	default:
		return nil, fmt.Errorf("params must be an array or an object")
	}
}

func (m *method) decodePositional(list []any) ([]reflect.Value, error) {
	if len(list) != len(m.params) {
		return nil, fmt.Errorf("expected %d params, got %d", len(m.params), len(list))
	}
	args := make([]reflect.Value, len(m.params))
	for i, pt := range m.params {
		v := reflect.New(pt).Elem()
		if err := decodeValue(list[i], v); err != nil {
			return nil, fmt.Errorf("param %d: %w", i, err)
		}
		args[i] = v
	}
	return args, nil
}

// decodeFields fills the fields of the single struct parameter in
// declaration order.
func (m *method) decodeFields(list []any) ([]reflect.Value, error) {
	if len(list) != len(m.fieldIndex) {
		return nil, fmt.Errorf("expected %d params, got %d", len(m.fieldIndex), len(list))
	}
	arg, st := m.newStructArg()
	for i, idx := range m.fieldIndex {
		if err := decodeValue(list[i], st.Field(idx)); err != nil {
			return nil, fmt.Errorf("param %s: %w", m.fieldNames[i], err)
		}
	}
	return []reflect.Value{arg}, nil
}

func (m *method) decodeNamed(obj map[string]any) ([]reflect.Value, error) {
	for _, name := range m.fieldNames {
		if _, ok := obj[name]; !ok && m.required[name] {
			return nil, fmt.Errorf("missing param: %s", name)
		}
	}
	arg, st := m.newStructArg()
	if err := decodeValue(obj, st); err != nil {
		return nil, err
	}
	return []reflect.Value{arg}, nil
}

// newStructArg allocates the single struct parameter, returning the value
// to pass and the addressable struct behind it.
func (m *method) newStructArg() (arg, st reflect.Value) {
	pt := m.params[0]
	if pt.Kind() == reflect.Pointer {
		ptr := reflect.New(pt.Elem())
		return ptr, ptr.Elem()
	}
	v := reflect.New(pt).Elem()
	return v, v
}

func isObject(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

// decodeValue decodes a generic value, as produced by the JSON or CBOR
// codec, into the addressable value out.
func decodeValue(in any, out reflect.Value) error {
	if in == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  out.Addr().Interface(),
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}
