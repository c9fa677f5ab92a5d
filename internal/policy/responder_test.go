package policy

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNegotiateFormat(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    Format
	}{
		{"plain navigation", map[string]string{HeaderSecFetchDest: "document"}, FormatHTML},
		{"no headers", nil, FormatHTML},
		{"xhr", map[string]string{"X-Requested-With": "XMLHttpRequest"}, FormatText},
		{"xhr lower case", map[string]string{"X-Requested-With": "xmlhttprequest"}, FormatText},
		{"script", map[string]string{HeaderSecFetchDest: "script"}, FormatText},
		{"fetch", map[string]string{HeaderSecFetchDest: "empty"}, FormatText},
		{"image", map[string]string{HeaderSecFetchDest: "image"}, FormatHTML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, NegotiateFormat(req))
		})
	}
}

func TestResponderBuild(t *testing.T) {
	t.Run("html page", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/account?tab=1", nil)
		req.Header.Set(HeaderSecFetchDest, "iframe")

		resp := NewResponder(nil).Build(req)

		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
		assert.Equal(t, strconv.Itoa(len(resp.Body)), resp.Header.Get("Content-Length"))
		assert.Contains(t, string(resp.Body), "Blocked request: GET /account")
	})

	t.Run("html page escapes the path", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/%3Cscript%3E", nil)

		resp := NewResponder(nil).Build(req)

		assert.NotContains(t, string(resp.Body), "<script>")
		assert.Contains(t, string(resp.Body), "&lt;script&gt;")
	})

	t.Run("plain text for xhr", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/transfer", nil)
		req.Header.Set("X-Requested-With", "XMLHttpRequest")

		resp := NewResponder(nil).Build(req)

		assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
		assert.Equal(t, "Blocked request: POST /transfer\n", string(resp.Body))
		assert.Equal(t, strconv.Itoa(len(resp.Body)), resp.Header.Get("Content-Length"))
	})

	t.Run("multi-byte body length", func(t *testing.T) {
		renderer := RendererFunc(func(*http.Request, Format) ([]byte, error) {
			return []byte("Zugriff verweigert: ü"), nil
		})
		req := httptest.NewRequest(http.MethodGet, "/", nil)

		resp := NewResponder(renderer).Build(req)

		assert.Equal(t, "22", resp.Header.Get("Content-Length"))
	})

	t.Run("renderer failure falls back to text", func(t *testing.T) {
		renderer := RendererFunc(func(*http.Request, Format) ([]byte, error) {
			return nil, errors.New("template missing")
		})
		req := httptest.NewRequest(http.MethodGet, "/page", nil)

		resp := NewResponder(renderer).Build(req)

		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
		assert.Equal(t, "Blocked request: GET /page\n", string(resp.Body))
	})
}

func TestResponseWrite(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/item/1", nil)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	resp := NewResponder(nil).Build(req)

	w := httptest.NewRecorder()
	require.NoError(t, resp.Write(w))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, strconv.Itoa(w.Body.Len()), w.Header().Get("Content-Length"))
	assert.Equal(t, "Blocked request: DELETE /item/1\n", w.Body.String())
}
