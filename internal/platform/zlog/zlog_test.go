package zlog

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/louisbranch/groupgate/internal/platform/requestctx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults filled", cfg: Config{Service: "groupgate"}},
		{name: "console debug", cfg: Config{Service: "groupgate", Level: "DEBUG", Encoding: "console"}},
		{name: "missing service", cfg: Config{Level: "info"}, wantErr: true},
		{name: "bad level", cfg: Config{Service: "groupgate", Level: "trace"}, wantErr: true},
		{name: "bad encoding", cfg: Config{Service: "groupgate", Encoding: "xml"}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg
			err := cfg.Validate()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected validation error")
				}
				return
			}
			if err != nil {
				t.Fatalf("validate: %v", err)
			}
			if cfg.Level == "" || cfg.Encoding == "" {
				t.Fatalf("expected defaults, got %+v", cfg)
			}
		})
	}
}

func TestNewWritesServiceField(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithSyncer(Config{Service: "groupgate", Level: "info"}, zapcore.AddSync(&buf))
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("membership updated", zap.Int64("account_id", 123456))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["service"] != "groupgate" {
		t.Fatalf("service = %v, want groupgate", entry["service"])
	}
	if entry["msg"] != "membership updated" {
		t.Fatalf("msg = %v", entry["msg"])
	}
}

func TestSetLevelFiltersEntries(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithSyncer(Config{Service: "groupgate", Level: "warn"}, zapcore.AddSync(&buf))
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered at warn, got %q", buf.String())
	}

	logger.SetLevel("debug")
	if logger.Level() != "debug" {
		t.Fatalf("level = %s, want debug", logger.Level())
	}
	logger.Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected debug entry after SetLevel, got %q", buf.String())
	}
}

func TestFromContextFallbacks(t *testing.T) {
	fallback := zap.NewExample()
	if got := FromContext(context.Background(), fallback); got != fallback {
		t.Fatal("expected fallback logger")
	}
	scoped := zap.NewExample()
	ctx := WithContext(context.Background(), scoped)
	if got := FromContext(ctx, fallback); got != scoped {
		t.Fatal("expected scoped logger")
	}
	if got := FromContext(nil, nil); got == nil {
		t.Fatal("expected nop logger")
	}
}

func TestGinLoggerAttachesRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	logger, err := NewWithSyncer(Config{Service: "groupgate"}, zapcore.AddSync(&buf))
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	router := gin.New()
	router.Use(GinLogger(logger.Logger))
	var sawScoped bool
	router.GET("/ping", func(c *gin.Context) {
		sawScoped = FromContext(c.Request.Context(), nil) != nil
		c.String(http.StatusOK, "pong")
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-Id", "req-1")
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !sawScoped {
		t.Fatal("expected request logger in context")
	}
	if got := rec.Header().Get("X-Request-Id"); got != "req-1" {
		t.Fatalf("echoed request id = %q, want req-1", got)
	}
	if !strings.Contains(buf.String(), `"request_id":"req-1"`) || !strings.Contains(buf.String(), `"status":200`) {
		t.Fatalf("unexpected access log %q", buf.String())
	}
}

func TestGinLoggerGeneratesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(GinLogger(nil))
	var fromCtx string
	router.GET("/ping", func(c *gin.Context) {
		fromCtx = requestctx.RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	header := rec.Header().Get(requestctx.HeaderRequestID)
	if len(header) != 26 {
		t.Fatalf("generated request id = %q, want 26 characters", header)
	}
	if fromCtx != header {
		t.Fatalf("context request id = %q, header = %q", fromCtx, header)
	}
}

func TestLevelHTTPHandler(t *testing.T) {
	logger, err := NewWithSyncer(Config{Service: "groupgate"}, zapcore.AddSync(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	handler := logger.LevelHTTPHandler()

	tests := []struct {
		method     string
		target     string
		wantStatus int
		wantLevel  string
	}{
		{method: http.MethodGet, target: "/log/level", wantStatus: http.StatusOK, wantLevel: "info"},
		{method: http.MethodPut, target: "/log/level?v=DEBUG", wantStatus: http.StatusOK, wantLevel: "debug"},
		{method: http.MethodPut, target: "/log/level?v=trace", wantStatus: http.StatusBadRequest, wantLevel: "debug"},
		{method: http.MethodPost, target: "/log/level?v=warn", wantStatus: http.StatusMethodNotAllowed, wantLevel: "debug"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))
		if rec.Code != tt.wantStatus {
			t.Fatalf("%s %s: status = %d, want %d", tt.method, tt.target, rec.Code, tt.wantStatus)
		}
		if got := logger.Level(); got != tt.wantLevel {
			t.Fatalf("%s %s: level = %q, want %q", tt.method, tt.target, got, tt.wantLevel)
		}
	}
}
