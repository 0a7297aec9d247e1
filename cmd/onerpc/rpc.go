package main

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/mnehpets/onerpc/endpoint"
	"github.com/mnehpets/onerpc/jsonrpc"
	"github.com/mnehpets/onerpc/methods"
	"github.com/mnehpets/onerpc/middleware"
)

// MathMethods are served under "math".
type MathMethods struct{}

func (MathMethods) Add(a, b float64) float64 { return a + b }

func (MathMethods) Sub(args struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}) float64 {
	return args.A - args.B
}

func (MathMethods) Mul(a, b float64) float64 { return a * b }

func (MathMethods) Div(a, b float64) (float64, error) {
	if b == 0 {
		return 0, jsonrpc.NewError(-32001, "division by zero")
	}
	return a / b, nil
}

func (MathMethods) Sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// SystemMethods are served under "system".
type SystemMethods struct {
	registry *methods.Methods
}

func (SystemMethods) Ping(ctx context.Context) string {
	zerolog.Ctx(ctx).Debug().Msg("ping")
	return "pong"
}

// ListMethods returns every registered method name.
func (s SystemMethods) ListMethods() []string {
	return s.registry.Names()
}

func newRegistry() *methods.Methods {
	m := methods.New()
	m.Register("system", SystemMethods{registry: m})
	m.Register("math", MathMethods{})
	m.Set("echo", func(_ context.Context, req jsonrpc.Request) (any, error) {
		return req.Params, nil
	})
	return m
}

func newHandler(cfg Config, log zerolog.Logger) http.Handler {
	server := jsonrpc.NewServer(newRegistry(),
		jsonrpc.WithLogger(log),
		jsonrpc.WithMaxConcurrency(cfg.MaxConcurrency),
		jsonrpc.WithDefaultErrorCode(cfg.DefaultErrorCode),
	)

	headerOpts := []middleware.HeadersOption{middleware.WithHSTS(cfg.HSTSMaxAge)}
	if len(cfg.CORSOrigins) > 0 {
		headerOpts = append(headerOpts, middleware.WithCORS(middleware.CORSConfig{
			AllowedOrigins: cfg.CORSOrigins,
			ExposedHeaders: []string{middleware.RequestIDHeader},
			MaxAge:         3600,
		}))
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, jsonrpc.Handler(server,
		middleware.NewRequestLogProcessor(log),
		middleware.NewHeadersProcessor(headerOpts...),
	))
	mux.Handle("GET /healthz", endpoint.HandleFunc(func(http.ResponseWriter, *http.Request, struct{}) (endpoint.Renderer, error) {
		return &endpoint.JSONRenderer{Value: map[string]string{"status": "ok"}}, nil
	}))
	return mux
}
