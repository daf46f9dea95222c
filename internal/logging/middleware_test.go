package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Amund211/gamegate/internal/logging"
	"github.com/stretchr/testify/require"
)

type StringAttr struct {
	Key   string
	Value string
}

func TestRequestLoggerMiddleware(t *testing.T) {
	t.Parallel()

	run := func(t *testing.T, request *http.Request) []StringAttr {
		t.Helper()

		buf := &bytes.Buffer{}
		middleware := logging.NewRequestLoggerMiddleware(slog.New(slog.NewJSONHandler(buf, nil)))

		handler := middleware(func(w http.ResponseWriter, r *http.Request) {
			logging.FromContext(r.Context()).Info("test")
		})

		w := httptest.NewRecorder()
		handler(w, request)

		var logEntry map[string]any
		err := json.Unmarshal(buf.Bytes(), &logEntry)
		require.NoError(t, err)

		attrs := make([]StringAttr, 0)
		foundBase := 0
		for key, value := range logEntry {
			switch key {
			case "msg":
				require.Equal(t, "test", value)
				foundBase++
			case "level":
				require.Equal(t, "INFO", value)
				foundBase++
			case "time":
				foundBase++
			default:
				attrs = append(attrs, StringAttr{Key: key, Value: value.(string)})
			}
		}
		require.Equal(t, 3, foundBase)

		return attrs
	}

	t.Run("all props", func(t *testing.T) {
		t.Parallel()

		request := httptest.NewRequest(http.MethodPost, "http://example.com/v1/catalog", nil)
		request.Header.Set("X-User-Id", "user-id")
		request.Header.Set("User-Agent", "kids-app/1.0")

		require.ElementsMatch(t, []StringAttr{
			{Key: "userId", Value: "user-id"},
			{Key: "userAgent", Value: "kids-app/1.0"},
			{Key: "methodPath", Value: "POST /v1/catalog"},
		}, run(t, request))
	})

	t.Run("missing props", func(t *testing.T) {
		t.Parallel()

		request := httptest.NewRequest(http.MethodGet, "http://example.com/v1/catalog/stats", nil)
		request.Header.Del("User-Agent")

		require.ElementsMatch(t, []StringAttr{
			{Key: "userId", Value: "<missing>"},
			{Key: "userAgent", Value: "<missing>"},
			{Key: "methodPath", Value: "GET /v1/catalog/stats"},
		}, run(t, request))
	})

	t.Run("without middleware", func(t *testing.T) {
		t.Parallel()

		logging.FromContext(context.Background()).Info("don't crash when no logger in context")
	})
}
