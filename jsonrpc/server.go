package jsonrpc

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// MethodRegistry executes a named method. Implementations must be safe for
// concurrent calls. A failure is reported as an error; returning an
// *Exception (or an error wrapping one) controls the code, data and extra
// members of the resulting error object.
type MethodRegistry interface {
	Call(ctx context.Context, req Request) (any, error)
}

// RegistryFunc adapts a function to a MethodRegistry.
type RegistryFunc func(ctx context.Context, req Request) (any, error)

func (f RegistryFunc) Call(ctx context.Context, req Request) (any, error) {
	return f(ctx, req)
}

// Reply is the outcome of Server.Call. Status is http.StatusOK when Body holds
// a response document and http.StatusNoContent when Body is nil.
type Reply struct {
	Status int
	// Body is nil, a *Response or a []*Response.
	Body any
}

// Server validates requests, dispatches them to a MethodRegistry and converts
// the outcomes into response documents.
type Server struct {
	registry       MethodRegistry
	classifier     *Classifier
	log            zerolog.Logger
	maxConcurrency int
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used when the context carries none.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithMaxConcurrency bounds the number of registry calls in flight for one
// batch. Zero or less means no bound.
func WithMaxConcurrency(n int) Option {
	return func(s *Server) {
		s.maxConcurrency = n
	}
}

// WithErrorRules replaces the message rules of the classifier.
func WithErrorRules(rules ...Rule) Option {
	return func(s *Server) {
		s.classifier.Rules = rules
	}
}

// WithDefaultErrorCode sets the code used for exceptions that carry none.
func WithDefaultErrorCode(code int) Option {
	return func(s *Server) {
		s.classifier.DefaultCode = code
	}
}

// NewServer creates a Server dispatching to registry.
func NewServer(registry MethodRegistry, opts ...Option) *Server {
	s := &Server{
		registry:   registry,
		classifier: NewClassifier(),
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Call dispatches every request of body and returns the response document.
//
// Call never fails: validation and method errors are reported inside the
// document, and dropped entirely for notifications. It returns only after
// every dispatched call has completed.
func (s *Server) Call(ctx context.Context, body Body) Reply {
	outcomes := s.dispatch(ctx, body.Requests())
	doc := Convert(body, outcomes, s.classifier)
	if doc == nil {
		return Reply{Status: http.StatusNoContent}
	}
	return Reply{Status: http.StatusOK, Body: doc}
}

// dispatch runs all valid requests concurrently. Each call writes only its own
// slot, so the outcomes keep input order whatever the completion order.
func (s *Server) dispatch(ctx context.Context, reqs []Request) []Outcome {
	outcomes := make([]Outcome, len(reqs))

	var g errgroup.Group
	if s.maxConcurrency > 0 {
		g.SetLimit(s.maxConcurrency)
	}
	for i, req := range reqs {
		if !req.valid() {
			s.logger(ctx).Debug().
				Int("index", i).
				Str("jsonrpc", req.JSONRPC).
				Str("method", req.Method).
				Msg("jsonrpc: invalid request")
			outcomes[i] = invalidOutcome()
			continue
		}
		g.Go(func() error {
			outcomes[i] = s.invoke(ctx, req)
			return nil
		})
	}
	// Calls never return an error; Wait is only a join.
	_ = g.Wait()
	return outcomes
}

func (s *Server) invoke(ctx context.Context, req Request) (out Outcome) {
	log := s.logger(ctx)
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("method", req.Method).
				Interface("panic", r).
				Msg("jsonrpc: method panicked")
			out = Failure(NewException("Internal Server Error"))
		}
	}()

	result, err := s.registry.Call(ctx, req)
	if err != nil {
		exc := AsException(err)
		log.Debug().
			Str("method", req.Method).
			Bool("notification", req.IsNotification()).
			Err(err).
			Msg("jsonrpc: method failed")
		return Failure(exc)
	}
	return Success(result)
}

// logger prefers a logger carried by ctx over the server's own.
func (s *Server) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.log
}
