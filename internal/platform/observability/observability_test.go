package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/requestctx"
)

func observed(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}

func TestRequestLoggerLevelsFollowStatus(t *testing.T) {
	cases := []struct {
		name   string
		status int
		level  zapcore.Level
	}{
		{name: "ok", status: http.StatusOK, level: zapcore.InfoLevel},
		{name: "client error", status: http.StatusNotFound, level: zapcore.WarnLevel},
		{name: "server error", status: http.StatusServiceUnavailable, level: zapcore.ErrorLevel},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			logger, logs := observed(zapcore.DebugLevel)

			router := chi.NewRouter()
			router.Use(InjectLoggerMiddleware(logger), RequestLoggerMiddleware("studio-dev"))
			router.Get("/api/v1/orders/{number}", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/PFS-1001", nil)
			req.Header.Set(clientIDHeader, "cart-42")
			router.ServeHTTP(httptest.NewRecorder(), req)

			entries := logs.FilterMessage("request completed").All()
			require.Len(t, entries, 1)
			entry := entries[0]
			assert.Equal(t, tc.level, entry.Level)

			fields := entry.ContextMap()
			assert.Equal(t, "/api/v1/orders/{number}", fields["route"])
			assert.EqualValues(t, tc.status, fields["status"])
			assert.Equal(t, "cart-42", fields["client_id"])
			assert.Equal(t, "GET", fields["method"])
		})
	}
}

func TestRequestLoggerStoresScopedLogger(t *testing.T) {
	logger, logs := observed(zapcore.DebugLevel)

	handler := InjectLoggerMiddleware(logger)(RequestLoggerMiddleware("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestctx.Logger(r.Context()).Info("handler ran")
	})))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil))

	entries := logs.FilterMessage("handler ran").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "/api/v1/checkout", entries[0].ContextMap()["path"])
}

func TestRecoveryWritesInternalError(t *testing.T) {
	logger, logs := observed(zapcore.DebugLevel)

	handler := InjectLoggerMiddleware(logger)(
		RecoveryMiddleware(zap.NewNop())(
			RequestLoggerMiddleware("")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				panic("boom")
			})),
		),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_server_error")
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())

	completed := logs.FilterMessage("request completed").All()
	require.Len(t, completed, 1)
	assert.Equal(t, zapcore.ErrorLevel, completed[0].Level)
	assert.EqualValues(t, http.StatusInternalServerError, completed[0].ContextMap()["status"])
}

func TestRecoveryRepanicsAbortHandler(t *testing.T) {
	handler := RecoveryMiddleware(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestTraceMiddlewareContinuesCloudTrace(t *testing.T) {
	var info requestctx.TraceInfo
	handler := TraceMiddleware("studio-prod")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, _ = requestctx.Trace(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(CloudTraceHeader, "105445aa7843bc8bf206b12000100000/1;o=1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "105445aa7843bc8bf206b12000100000", info.TraceID)
	assert.Equal(t, "studio-prod", info.ProjectID)
	assert.True(t, strings.HasPrefix(rec.Header().Get(CloudTraceHeader), "105445aa7843bc8bf206b12000100000/"))
}

func TestParseCloudTrace(t *testing.T) {
	sc, ok := parseCloudTrace("105445aa7843bc8bf206b12000100000/255;o=1")
	require.True(t, ok)
	assert.Equal(t, "00000000000000ff", sc.SpanID().String())
	assert.True(t, sc.IsSampled())
	assert.True(t, sc.IsRemote())

	sc, ok = parseCloudTrace("105445aa7843bc8bf206b12000100000/00f067aa0ba902b7")
	require.True(t, ok)
	assert.Equal(t, "00f067aa0ba902b7", sc.SpanID().String())
	assert.False(t, sc.IsSampled())

	for _, header := range []string{"", "abc/1", "105445aa7843bc8bf206b12000100000", "00000000000000000000000000000000/1", "105445aa7843bc8bf206b12000100000/0"} {
		_, ok := parseCloudTrace(header)
		assert.False(t, ok, header)
	}
}

func TestEventLoggerWritesSortedFieldsWithTrace(t *testing.T) {
	logger, logs := observed(zapcore.DebugLevel)
	ctx := requestctx.WithTrace(context.Background(), requestctx.TraceInfo{TraceID: "abc123"})

	EventLogger(logger)(ctx, "checkout.order_created", map[string]any{"order": "PFS-1", "amount": 4200})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	keys := make([]string, 0, len(entries[0].Context))
	for _, field := range entries[0].Context {
		keys = append(keys, field.Key)
	}
	assert.Equal(t, []string{"event", "traceId", "amount", "order"}, keys)
}

func TestCleanStripsControlCharacters(t *testing.T) {
	assert.Equal(t, "ab", clean("a\nb", 10))
	assert.Equal(t, "héll", clean("héllo", 4))
}
