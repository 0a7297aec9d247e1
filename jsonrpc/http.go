package jsonrpc

import (
	"errors"
	"net/http"

	"github.com/mnehpets/onerpc/endpoint"
)

// rpcParams captures the raw request body. Parsing is deferred to the
// endpoint because a malformed document must still be answered with a
// JSON-RPC parse error rather than an HTTP 400.
type rpcParams struct {
	Body        []byte `body:"" maxLength:"1048576"`
	ContentType string `header:"Content-Type"`
}

// codecFor picks the codec for a Content-Type. An empty Content-Type is
// treated as JSON.
func codecFor(contentType string) (Codec, bool) {
	switch mt := endpoint.MediaType(contentType); {
	case mt == "" || endpoint.IsJSONMediaType(mt):
		return JSON, true
	case mt == CBOR.ContentType():
		return CBOR, true
	}
	return nil, false
}

// Endpoint is the endpoint function serving JSON-RPC over HTTP POST.
// Pass it to endpoint.Handler, or use Handler.
//
// Requests must use application/json (or a +json type) or application/cbor;
// the response is written in the same encoding. A document that cannot be
// parsed is answered with a single -32700 error whose id is null.
func (s *Server) Endpoint(_ http.ResponseWriter, r *http.Request, params rpcParams) (endpoint.Renderer, error) {
	if r.Method != http.MethodPost {
		return nil, endpoint.Error(http.StatusMethodNotAllowed, "JSON-RPC requires POST method", nil)
	}
	codec, ok := codecFor(params.ContentType)
	if !ok {
		return nil, endpoint.Error(http.StatusUnsupportedMediaType, "Content-Type must be application/json or application/cbor", nil)
	}

	body, err := codec.Decode(params.Body)
	if err != nil {
		if !errors.Is(err, ErrParse) {
			return nil, err
		}
		s.logger(r.Context()).Debug().Err(err).Msg("jsonrpc: parse error")
		return render(codec, Reply{
			Status: http.StatusOK,
			Body: &Response{
				ID:    nil,
				Error: &Error{Code: CodeParseError, Message: "Parse error"},
			},
		}), nil
	}

	return render(codec, s.Call(r.Context(), body)), nil
}

func render(codec Codec, reply Reply) endpoint.Renderer {
	if reply.Body == nil {
		return &endpoint.NoContentRenderer{Status: reply.Status}
	}
	if codec == CBOR {
		return &endpoint.CBORRenderer{Status: reply.Status, Value: reply.Body}
	}
	return &endpoint.JSONRenderer{Status: reply.Status, Value: reply.Body}
}

// Handler returns an http.Handler serving s through the given processors.
func Handler(s *Server, processors ...endpoint.Processor) http.Handler {
	return endpoint.Handler(s.Endpoint, processors...)
}
