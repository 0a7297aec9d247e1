package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mnehpets/onerpc/endpoint"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-Id"

// RequestLogProcessor tags each request with an id, puts a logger carrying
// that id into the request context, and writes one access log entry per
// request.
//
// An incoming X-Request-Id is kept when it is a valid UUID; otherwise a new
// one is generated. The id is echoed in the response header.
type RequestLogProcessor struct {
	Logger zerolog.Logger

	now func() time.Time
}

// NewRequestLogProcessor creates a RequestLogProcessor writing to log.
func NewRequestLogProcessor(log zerolog.Logger) *RequestLogProcessor {
	return &RequestLogProcessor{Logger: log, now: time.Now}
}

// Process implements endpoint.Processor.
func (p *RequestLogProcessor) Process(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
	now := p.now
	if now == nil {
		now = time.Now
	}
	start := now()

	id := r.Header.Get(RequestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, id)

	log := p.Logger.With().Str("request_id", id).Logger()
	r = r.WithContext(log.WithContext(r.Context()))

	rec := &statusRecorder{ResponseWriter: w}
	err := next(rec, r)

	status := rec.status
	if err != nil {
		status = errorStatus(err)
	}
	if status == 0 {
		status = http.StatusOK
	}

	ev := log.Info()
	if status >= http.StatusInternalServerError {
		ev = log.Warn()
	}
	ev.Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int64("bytes", rec.bytes).
		Dur("duration", now().Sub(start)).
		Msg("request")
	return err
}

// errorStatus mirrors the status the endpoint handler writes for err.
func errorStatus(err error) int {
	var ee *endpoint.EndpointError
	if errors.As(err, &ee) && ee.Status >= 100 {
		return ee.Status
	}
	return http.StatusInternalServerError
}

// statusRecorder remembers the status and body size written through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (s *statusRecorder) WriteHeader(status int) {
	if s.status == 0 {
		s.status = status
	}
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += int64(n)
	return n, err
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

var _ endpoint.Processor = (*RequestLogProcessor)(nil)
