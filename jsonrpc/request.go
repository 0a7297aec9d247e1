package jsonrpc

import (
	"encoding/json"
)

// Version is the only protocol version accepted in requests and written in responses.
const Version = "2.0"

// Request is a single JSON-RPC request envelope.
//
// Params and ID are opaque to this package. An ID may be present and null;
// only an absent ID marks the request as a notification.
type Request struct {
	JSONRPC string
	Method  string
	Params  any
	ID      any

	hasID bool
}

// NewRequest returns a request that expects a response carrying id.
func NewRequest(method string, params any, id any) Request {
	return Request{JSONRPC: Version, Method: method, Params: params, ID: id, hasID: true}
}

// NewNotification returns a request without an id.
func NewNotification(method string, params any) Request {
	return Request{JSONRPC: Version, Method: method, Params: params}
}

// HasID reports whether the envelope carried an id member, even a null one.
func (r Request) HasID() bool {
	return r.hasID
}

// IsNotification reports whether no response may be produced for r.
func (r Request) IsNotification() bool {
	return !r.hasID
}

// WithID returns a copy of r carrying id.
func (r Request) WithID(id any) Request {
	r.ID = id
	r.hasID = true
	return r
}

// valid reports whether r may be handed to a registry.
func (r Request) valid() bool {
	return r.Method != "" && r.JSONRPC == Version
}

// requestFromMap builds a Request from a decoded envelope object.
// Members of the wrong type are left at their zero value so that
// validation, not decoding, rejects them.
func requestFromMap(m map[string]any) Request {
	var req Request
	if v, ok := m["jsonrpc"].(string); ok {
		req.JSONRPC = v
	}
	if v, ok := m["method"].(string); ok {
		req.Method = v
	}
	req.Params = m["params"]
	if id, ok := m["id"]; ok {
		req.ID = id
		req.hasID = true
	}
	return req
}

func (r Request) fields() map[string]any {
	m := map[string]any{
		"jsonrpc": r.JSONRPC,
		"method":  r.Method,
	}
	if r.Params != nil {
		m["params"] = r.Params
	}
	if r.hasID {
		m["id"] = r.ID
	}
	return m
}

// MarshalJSON writes the envelope, omitting id for notifications.
func (r Request) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.fields())
}

// UnmarshalJSON reads an envelope object, recording whether id was present.
func (r *Request) UnmarshalJSON(data []byte) error {
	v, err := decodeJSON(data)
	if err != nil {
		return err
	}
	m, ok := v.(map[string]any)
	if !ok {
		*r = Request{ID: nil, hasID: true}
		return nil
	}
	*r = requestFromMap(m)
	return nil
}

// Body is the normalized form of a call: either a single request or a batch.
//
// The zero Body is an empty batch.
type Body struct {
	requests []Request
	batch    bool
}

// Single wraps one request.
func Single(req Request) Body {
	return Body{requests: []Request{req}}
}

// Batch wraps an ordered sequence of requests. The result is a batch even when
// reqs holds a single element.
func Batch(reqs ...Request) Body {
	return Body{requests: reqs, batch: true}
}

// Requests returns the requests in input order.
func (b Body) Requests() []Request {
	return b.requests
}

// IsBatch reports whether the body arrived as an array.
func (b Body) IsBatch() bool {
	return b.batch || len(b.requests) != 1
}

// bodyFromValue normalizes a decoded document into a Body.
//
// Array elements and single documents that are not objects become
// requests with a null id and no method, so they fail validation and
// still receive an Invalid request response.
func bodyFromValue(v any) Body {
	items, ok := v.([]any)
	if !ok {
		return Single(requestFromValue(v))
	}
	reqs := make([]Request, len(items))
	for i, item := range items {
		reqs[i] = requestFromValue(item)
	}
	return Batch(reqs...)
}

func requestFromValue(v any) Request {
	if m, ok := v.(map[string]any); ok {
		return requestFromMap(m)
	}
	return Request{hasID: true}
}
