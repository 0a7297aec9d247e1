package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, args ...string) (Config, error) {
	t.Helper()
	flags := pflag.NewFlagSet("onerpc", pflag.ContinueOnError)
	addFlags(flags)
	require.NoError(t, flags.Parse(args))
	v, err := newViper(flags)
	require.NoError(t, err)
	return loadConfig(v)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := testConfig(t)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "/rpc", cfg.Path)
	assert.Equal(t, 0, cfg.MaxConcurrency)
	assert.Equal(t, -32000, cfg.DefaultErrorCode)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.GracePeriod)
	assert.Empty(t, cfg.CORSOrigins)
}

func TestLoadConfigPrecedence(t *testing.T) {
	t.Setenv("ONERPC_MAX_CONCURRENCY", "4")
	t.Setenv("ONERPC_ADDR", ":7000")
	t.Setenv("ONERPC_CORS_ORIGIN", "https://a.example,https://b.example")
	t.Setenv("ONERPC_GRACE_PERIOD", "3s")

	cfg, err := testConfig(t, "--addr=:9000")
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr, "flag wins over env")
	assert.Equal(t, 4, cfg.MaxConcurrency)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 3*time.Second, cfg.GracePeriod)
}

func TestLoadConfigInvalid(t *testing.T) {
	for _, args := range [][]string{
		{"--path=rpc"},
		{"--max-concurrency=-1"},
		{"--log-format=xml"},
		{"--log-level=loud"},
	} {
		_, err := testConfig(t, args...)
		assert.Error(t, err, "args %v", args)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(Config{LogLevel: "warn", LogFormat: "json"}, &buf)
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "shown", entry["message"])
	assert.Contains(t, entry, "time")
}

func postJSON(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerBatch(t *testing.T) {
	cfg, err := testConfig(t)
	require.NoError(t, err)
	h := newHandler(cfg, zerolog.Nop())

	rec := postJSON(t, h, `[
		{"jsonrpc":"2.0","method":"math.Add","params":[1,2],"id":1},
		{"jsonrpc":"2.0","method":"math.Sub","params":{"a":5,"b":3},"id":2},
		{"jsonrpc":"2.0","method":"math.Div","params":[1,0],"id":3},
		{"jsonrpc":"2.0","method":"system.ping","id":4},
		{"jsonrpc":"2.0","method":"echo","params":{"x":[1,"y"]},"id":5},
		{"jsonrpc":"2.0","method":"system.Ping"}
	]`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var resps []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resps))
	require.Len(t, resps, 5)

	assert.Equal(t, float64(3), resps[0]["result"])
	assert.Equal(t, float64(2), resps[1]["result"])
	assert.Equal(t, map[string]any{"code": float64(-32001), "message": "division by zero"}, resps[2]["error"])
	assert.Equal(t, float64(-32601), resps[3]["error"].(map[string]any)["code"])
	assert.Equal(t, map[string]any{"x": []any{float64(1), "y"}}, resps[4]["result"])
}

func TestHandlerListMethods(t *testing.T) {
	cfg, err := testConfig(t)
	require.NoError(t, err)
	h := newHandler(cfg, zerolog.Nop())

	rec := postJSON(t, h, `{"jsonrpc":"2.0","method":"system.ListMethods","id":"l"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Result []string `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{
		"echo",
		"math.Add", "math.Div", "math.Mul", "math.Sub", "math.Sum",
		"system.ListMethods", "system.Ping",
	}, resp.Result)
}

func TestHandlerCORSAndHealth(t *testing.T) {
	cfg, err := testConfig(t, "--cors-origin=https://a.example")
	require.NoError(t, err)
	h := newHandler(cfg, zerolog.Nop())

	req := httptest.NewRequest(http.MethodOptions, "/rpc", nil)
	req.Header.Set("Origin", "https://a.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://a.example", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
