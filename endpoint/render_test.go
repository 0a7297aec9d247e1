package endpoint

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func TestJSONRenderer(t *testing.T) {
	rec := httptest.NewRecorder()
	r := &JSONRenderer{Value: map[string]string{"a": "<b>"}}
	if err := r.Render(rec, httptest.NewRequest(http.MethodGet, "/", nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("got status %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("got Content-Type %q", got)
	}
	if got := rec.Body.String(); got != "{\"a\":\"<b>\"}\n" {
		t.Errorf("got body %q", got)
	}
}

func TestJSONRenderer_EncoderFactory(t *testing.T) {
	rec := httptest.NewRecorder()
	r := &JSONRenderer{
		Status: http.StatusAccepted,
		Value:  []int{1},
		EncoderFactory: func(w io.Writer) *json.Encoder {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc
		},
	}
	if err := r.Render(rec, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Errorf("got status %d", rec.Code)
	}
	if got := rec.Body.String(); got != "[\n  1\n]\n" {
		t.Errorf("got body %q", got)
	}

	nilFactory := &JSONRenderer{Value: 1, EncoderFactory: func(io.Writer) *json.Encoder { return nil }}
	if err := nilFactory.Render(httptest.NewRecorder(), nil); err != io.ErrUnexpectedEOF {
		t.Errorf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestCBORRenderer(t *testing.T) {
	rec := httptest.NewRecorder()
	r := &CBORRenderer{Value: map[string]any{"n": 1, "s": "x"}}
	if err := r.Render(rec, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/cbor" {
		t.Errorf("got Content-Type %q", got)
	}

	var got map[string]any
	if err := cbor.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["s"] != "x" || got["n"] != uint64(1) {
		t.Errorf("got %#v", got)
	}

	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		t.Fatal(err)
	}
	rec2 := httptest.NewRecorder()
	if err := (&CBORRenderer{Value: map[string]any{"n": 1, "s": "x"}, EncMode: em}).Render(rec2, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want, _ := em.Marshal(map[string]any{"n": 1, "s": "x"})
	if !bytes.Equal(rec2.Body.Bytes(), want) {
		t.Errorf("canonical encoding mismatch")
	}
}

func TestCBORRenderer_EncodeError_WritesNothing(t *testing.T) {
	rec := httptest.NewRecorder()
	err := (&CBORRenderer{Value: make(chan int)}).Render(rec, nil)
	if err == nil {
		t.Fatal("expected an encoding error")
	}
	if rec.Body.Len() != 0 || rec.Header().Get("Content-Type") != "" {
		t.Errorf("nothing should be written on encoding failure")
	}
}

func TestNoContentRenderer(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := (&NoContentRenderer{}).Render(rec, nil); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Errorf("got status %d body %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	_ = (&NoContentRenderer{Status: http.StatusAccepted}).Render(rec, nil)
	if rec.Code != http.StatusAccepted {
		t.Errorf("got status %d", rec.Code)
	}
}
