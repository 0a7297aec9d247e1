package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Codec converts between a wire document and a Body.
type Codec interface {
	// ContentType is the media type the codec reads and writes.
	ContentType() string
	// Decode parses a document holding one request object or an array of them.
	Decode(data []byte) (Body, error)
}

// ErrParse is returned by a Codec when the document cannot be parsed at all.
var ErrParse = errors.New("jsonrpc: parse error")

// JSON is the application/json codec.
var JSON Codec = jsonCodec{}

// CBOR is the application/cbor codec. Envelopes use the same member names
// as their JSON form.
var CBOR Codec = cborCodec{}

type jsonCodec struct{}

func (jsonCodec) ContentType() string { return "application/json" }

func (jsonCodec) Decode(data []byte) (Body, error) {
	v, err := decodeJSON(data)
	if err != nil {
		return Body{}, err
	}
	return bodyFromValue(v), nil
}

// decodeJSON decodes a single JSON document, keeping numbers as json.Number
// so integer ids survive unchanged.
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after document", ErrParse)
	}
	return v, nil
}

type cborCodec struct{}

var cborDecMode = func() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}()

func (cborCodec) ContentType() string { return "application/cbor" }

func (cborCodec) Decode(data []byte) (Body, error) {
	var v any
	if err := cborDecMode.Unmarshal(data, &v); err != nil {
		return Body{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return bodyFromValue(v), nil
}
