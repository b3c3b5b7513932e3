package json

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, Write(w, map[string]string{"status": "ok"}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestWriteErrors(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w http.ResponseWriter)
		wantStatus int
		wantError  string
	}{
		{
			name:       "bad_request",
			write:      func(w http.ResponseWriter) { WriteBadRequest(w, "missing state") },
			wantStatus: http.StatusBadRequest,
			wantError:  "bad_request",
		},
		{
			name:       "method_not_allowed",
			write:      func(w http.ResponseWriter) { WriteMethodNotAllowed(w, http.MethodPost) },
			wantStatus: http.StatusMethodNotAllowed,
			wantError:  "method_not_allowed",
		},
		{
			name:       "forbidden",
			write:      func(w http.ResponseWriter) { WriteForbidden(w, "cross-origin request") },
			wantStatus: http.StatusForbidden,
			wantError:  "forbidden",
		},
		{
			name:       "conflict",
			write:      func(w http.ResponseWriter) { WriteConflict(w, "already completed") },
			wantStatus: http.StatusConflict,
			wantError:  "conflict",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.wantStatus, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantError, resp.Error)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestWriteMethodNotAllowed_SetsAllow(t *testing.T) {
	w := httptest.NewRecorder()
	WriteMethodNotAllowed(w, http.MethodPost)
	assert.Equal(t, http.MethodPost, w.Header().Get("Allow"))
}

func TestDecodeLimited(t *testing.T) {
	var v struct {
		Data []map[string]string `json:"data"`
	}
	err := DecodeLimited(strings.NewReader(`{"data":[{"id":"1"}]}`), 1024, &v)
	require.NoError(t, err)
	assert.Equal(t, "1", v.Data[0]["id"])

	// Truncated input fails to decode
	err = DecodeLimited(strings.NewReader(`{"data":[{"id":"1"}]}`), 8, &v)
	assert.Error(t, err)
}

func TestReadLimited(t *testing.T) {
	t.Run("reads content up to limit", func(t *testing.T) {
		assert.Equal(t, "hello world", ReadLimited(strings.NewReader("hello world"), 1024))
	})

	t.Run("truncates at limit", func(t *testing.T) {
		assert.Equal(t, "hello", ReadLimited(strings.NewReader("hello world"), 5))
	})

	t.Run("read error returns description", func(t *testing.T) {
		r := &failingReader{err: fmt.Errorf("connection reset")}
		assert.Equal(t, "<unreadable: connection reset>", ReadLimited(r, 1024))
	})
}

type failingReader struct {
	err error
}

func (r *failingReader) Read(_ []byte) (int, error) {
	return 0, r.err
}
