// Package jsonrpc implements the JSON-RPC 2.0 request/response layer on top of
// a pluggable method registry.
//
// This package follows the JSON-RPC 2.0 specification (https://www.jsonrpc.org/specification)
// and JSON-RPC over HTTP (https://www.simple-is-better.org/json-rpc/transport_http.html).
//
// # Basic Usage
//
// A Server needs a MethodRegistry. Any function can serve as one:
//
//	reg := jsonrpc.RegistryFunc(func(ctx context.Context, req jsonrpc.Request) (any, error) {
//	    switch req.Method {
//	    case "ping":
//	        return "pong", nil
//	    }
//	    return nil, jsonrpc.NewException("Not Found")
//	})
//	s := jsonrpc.NewServer(reg)
//	http.Handle("/rpc", jsonrpc.Handler(s))
//
// The methods package provides a registry with reflection-based registration.
//
// # Calling Without HTTP
//
// Server.Call takes an already decoded Body and returns a Reply:
//
//	reply := s.Call(ctx, jsonrpc.Single(jsonrpc.NewRequest("ping", nil, 1)))
//	// reply.Status == 200, reply.Body.(*jsonrpc.Response).Result == "pong"
//
// Every valid request of a batch is dispatched concurrently. The response
// order always matches the request order. Notifications (requests without
// an id) never produce a response, even when they fail; when nothing is left
// to return, Reply.Body is nil and Reply.Status is 204.
//
// # Errors
//
// Envelopes with a missing method or a jsonrpc member other than "2.0" are
// answered with -32600 "Invalid request" without calling the registry.
//
// A registry reports failure by returning an error. Returning an *Exception
// sets the code, data and any extra members of the error object:
//
//	return nil, jsonrpc.NewError(4001, "quota exceeded").WithData(limit)
//
// The Classifier then rewrites a few well-known messages, compared without
// regard to case:
//   - "not found" becomes -32601 "Method not found"
//   - "bad request" becomes -32602 "Invalid params"
//   - "internal server error" becomes -32603 "Internal error"
//
// Other exceptions keep their code and message. An exception without a code
// is given CodeServerError (-32000), see WithDefaultErrorCode.
//
// # Encodings
//
// The HTTP endpoint accepts application/json and application/cbor and answers
// in the encoding of the request.
package jsonrpc
