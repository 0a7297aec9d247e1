package endpoint

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/fxamacker/cbor/v2"
)

// JSONRenderer writes Value as JSON with Content-Type application/json.
//
// If Status is 0 it defaults to http.StatusOK. json.Encoder appends a
// trailing newline. An encoding error is returned after the status has been
// written, so callers can only log it.
type JSONRenderer struct {
	Status int
	Value  any

	// EncoderFactory optionally customizes encoder creation.
	// When nil, json.NewEncoder is used with HTML escaping disabled.
	EncoderFactory func(w io.Writer) *json.Encoder
}

func (jr *JSONRenderer) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusOr(jr.Status, http.StatusOK))

	var enc *json.Encoder
	if jr.EncoderFactory != nil {
		enc = jr.EncoderFactory(w)
	} else {
		enc = json.NewEncoder(w)
		enc.SetEscapeHTML(false)
	}
	if enc == nil {
		return io.ErrUnexpectedEOF
	}
	return enc.Encode(jr.Value)
}

// CBORRenderer writes Value as CBOR with Content-Type application/cbor.
//
// If Status is 0 it defaults to http.StatusOK. EncMode, when set, controls
// the encoding options; otherwise the cbor package defaults are used.
type CBORRenderer struct {
	Status  int
	Value   any
	EncMode cbor.EncMode
}

func (cr *CBORRenderer) Render(w http.ResponseWriter, _ *http.Request) error {
	var (
		b   []byte
		err error
	)
	if cr.EncMode != nil {
		b, err = cr.EncMode.Marshal(cr.Value)
	} else {
		b, err = cbor.Marshal(cr.Value)
	}
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/cbor")
	w.WriteHeader(statusOr(cr.Status, http.StatusOK))
	_, err = w.Write(b)
	return err
}

// NoContentRenderer writes a status with no body.
//
// If Status is 0, it defaults to http.StatusNoContent.
type NoContentRenderer struct {
	Status int
}

func (ncr *NoContentRenderer) Render(w http.ResponseWriter, _ *http.Request) error {
	w.WriteHeader(statusOr(ncr.Status, http.StatusNoContent))
	return nil
}

func statusOr(status, fallback int) int {
	if status == 0 {
		return fallback
	}
	return status
}
