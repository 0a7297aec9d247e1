package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"github.com/mnehpets/onerpc/jsonrpc"
	"github.com/mnehpets/onerpc/methods"
	"github.com/mnehpets/onerpc/middleware"
)

type MathMethods struct{}

func (m *MathMethods) Add(ctx context.Context, a, b int) (int, error) {
	return a + b, nil
}

func (m *MathMethods) Sub(ctx context.Context, args struct {
	A int `json:"a"`
	B int `json:"b"`
}) (int, error) {
	return args.A - args.B, nil
}

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	reg := methods.New()
	reg.Register("math", &MathMethods{})
	s := jsonrpc.NewServer(reg, jsonrpc.WithLogger(log))

	// Calls can be made without going through HTTP.
	reply := s.Call(context.Background(), jsonrpc.Batch(
		jsonrpc.NewRequest("math.Add", []any{2, 3}, 1),
		jsonrpc.NewRequest("math.Sub", map[string]any{"a": 5, "b": 8}, 2),
		jsonrpc.NewNotification("math.Add", []any{0, 0}),
	))
	for _, resp := range reply.Body.([]*jsonrpc.Response) {
		fmt.Printf("id=%v result=%v\n", resp.ID, resp.Result)
	}

	http.Handle("/rpc", jsonrpc.Handler(s, middleware.NewRequestLogProcessor(log)))

	log.Info().Msg("Starting server on :8080")
	if err := http.ListenAndServe(":8080", nil); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
