package endpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strconv"
	"strings"
)

// defaultFieldLimit caps every decoded value unless the field sets maxLength.
var defaultFieldLimit int64 = 16 * 1024 // 16KB

// Unmarshal populates dst, a non-nil pointer to a struct, from the request.
//
// Supported struct tags:
//   - `body:""` reads the whole request body. string and []byte fields receive
//     the raw bytes; any other type is decoded as JSON and requires a JSON
//     Content-Type.
//   - `header:"Name"` reads the first value of a request header.
//   - `query:"name"` reads the first value of a query parameter.
//   - `maxLength:"n"` sets the byte limit for the value. The default is 16KB;
//     "0" disables the limit. Oversized values are rejected with 413 for the
//     body and 400 otherwise.
//
// An empty tag name defaults to the lower-cased field name. Fields without
// any of these tags, and fields with no data present, are left unchanged.
func Unmarshal(r *http.Request, dst any) error {
	if r == nil {
		return Error(http.StatusInternalServerError, "", errors.New("endpoint: decode: nil request"))
	}
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return Error(http.StatusInternalServerError, "", errors.New("endpoint: decode: dst must be a non-nil pointer"))
	}
	root := v.Elem()
	if root.Kind() == reflect.Pointer {
		if root.IsNil() {
			root.Set(reflect.New(root.Type().Elem()))
		}
		root = root.Elem()
	}
	if root.Kind() != reflect.Struct {
		return Error(http.StatusInternalServerError, "", errors.New("endpoint: decode: dst must point to a struct"))
	}

	t := root.Type()
	bodyRead := false
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		limit, err := fieldLimit(sf)
		if err != nil {
			return Error(http.StatusInternalServerError, "", fmt.Errorf("endpoint: decode: field %s: %w", sf.Name, err))
		}
		fv := root.Field(i)

		if _, ok := sf.Tag.Lookup("body"); ok {
			if bodyRead {
				return Error(http.StatusInternalServerError, "", fmt.Errorf("endpoint: decode: multiple body fields at %s", sf.Name))
			}
			bodyRead = true
			if err := decodeBody(r, fv, limit); err != nil {
				return err
			}
			continue
		}
		if name, ok := tagName(sf, "header"); ok {
			if vals := r.Header.Values(name); len(vals) > 0 {
				if err := setField(fv, vals[0], limit, "header "+name); err != nil {
					return err
				}
			}
			continue
		}
		if name, ok := tagName(sf, "query"); ok && r.URL != nil {
			if vals, present := r.URL.Query()[name]; present && len(vals) > 0 {
				if err := setField(fv, vals[0], limit, "query "+name); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func tagName(sf reflect.StructField, key string) (string, bool) {
	tag, ok := sf.Tag.Lookup(key)
	if !ok {
		return "", false
	}
	name := strings.TrimSpace(strings.Split(tag, ",")[0])
	if name == "-" {
		return "", false
	}
	if name == "" {
		name = strings.ToLower(sf.Name)
	}
	return name, true
}

func fieldLimit(sf reflect.StructField) (int64, error) {
	tag, ok := sf.Tag.Lookup("maxLength")
	if !ok {
		return defaultFieldLimit, nil
	}
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(tag, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("maxLength tag: %w", err)
	}
	if n < 0 {
		return 0, errors.New("maxLength tag must be non-negative")
	}
	return n, nil
}

func decodeBody(r *http.Request, fv reflect.Value, limit int64) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	var src io.Reader = r.Body
	if limit > 0 {
		// Read one extra byte so an exact-limit body is not mistaken for an overflow.
		src = io.LimitReader(r.Body, limit+1)
	}
	b, err := io.ReadAll(src)
	if err != nil {
		return Error(http.StatusBadRequest, "", fmt.Errorf("endpoint: decode: body: %w", err))
	}
	if limit > 0 && int64(len(b)) > limit {
		return Error(http.StatusRequestEntityTooLarge, "", fmt.Errorf("endpoint: decode: body exceeds %d bytes", limit))
	}

	switch {
	case fv.Kind() == reflect.String:
		fv.SetString(string(b))
		return nil
	case fv.Kind() == reflect.Slice && fv.Type().Elem().Kind() == reflect.Uint8:
		fv.SetBytes(b)
		return nil
	}

	if !IsJSONMediaType(r.Header.Get("Content-Type")) {
		return Error(http.StatusUnsupportedMediaType, "", fmt.Errorf("endpoint: decode: body: unsupported media type %q", r.Header.Get("Content-Type")))
	}
	if err := json.Unmarshal(b, fv.Addr().Interface()); err != nil {
		return Error(http.StatusBadRequest, "", fmt.Errorf("endpoint: decode: body: %w", err))
	}
	return nil
}

func setField(fv reflect.Value, s string, limit int64, source string) error {
	if limit > 0 && int64(len(s)) > limit {
		return Error(http.StatusBadRequest, "", fmt.Errorf("endpoint: decode: %s exceeds %d bytes", source, limit))
	}
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(s)
	case reflect.Slice:
		if fv.Type().Elem().Kind() != reflect.Uint8 {
			return Error(http.StatusInternalServerError, "", fmt.Errorf("endpoint: decode: %s: unsupported type %s", source, fv.Type()))
		}
		fv.SetBytes([]byte(s))
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Error(http.StatusBadRequest, "", fmt.Errorf("endpoint: decode: %s: %w", source, err))
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, fv.Type().Bits())
		if err != nil {
			return Error(http.StatusBadRequest, "", fmt.Errorf("endpoint: decode: %s: %w", source, err))
		}
		fv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, fv.Type().Bits())
		if err != nil {
			return Error(http.StatusBadRequest, "", fmt.Errorf("endpoint: decode: %s: %w", source, err))
		}
		fv.SetUint(n)
	default:
		return Error(http.StatusInternalServerError, "", fmt.Errorf("endpoint: decode: %s: unsupported type %s", source, fv.Type()))
	}
	return nil
}

// MediaType returns the lower-cased media type of a Content-Type value,
// without parameters. A malformed value is returned trimmed and lower-cased.
func MediaType(contentType string) string {
	ct := strings.TrimSpace(contentType)
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(ct)
	}
	return strings.ToLower(mt)
}

// IsJSONMediaType reports whether contentType is application/json or a +json type.
func IsJSONMediaType(contentType string) bool {
	mt := MediaType(contentType)
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
