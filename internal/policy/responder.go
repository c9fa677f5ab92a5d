package policy

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
)

// DefaultCharset is appended to the Content-Type of rejection responses.
const DefaultCharset = "utf-8"

// Format is the media type chosen for a rejection body.
type Format string

const (
	FormatHTML Format = "text/html"
	FormatText Format = "text/plain"
)

// NegotiateFormat picks text/plain for XHR and script-style requests and
// text/html for everything else.
func NegotiateFormat(r *http.Request) Format {
	if strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest") {
		return FormatText
	}
	switch strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderSecFetchDest))) {
	case DestScript, DestEmpty:
		return FormatText
	}
	return FormatHTML
}

// Renderer produces the body of a rejection response.
type Renderer interface {
	RenderForbidden(r *http.Request, format Format) ([]byte, error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(r *http.Request, format Format) ([]byte, error)

// RenderForbidden calls f.
func (f RendererFunc) RenderForbidden(r *http.Request, format Format) ([]byte, error) {
	return f(r, format)
}

var blockedPage = template.Must(template.New("blocked_request").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Blocked request</title>
</head>
<body>
  <h1>Blocked request: {{.Method}} {{.Path}}</h1>
  <p>This request was blocked because it was sent from another site.
  If you followed a link or submitted a form, go back and try again from this site.</p>
</body>
</html>
`))

// DefaultRenderer renders a minimal HTML page or a one-line text body.
type DefaultRenderer struct{}

// RenderForbidden implements Renderer.
func (DefaultRenderer) RenderForbidden(r *http.Request, format Format) ([]byte, error) {
	if format == FormatText {
		return []byte(plainBody(r)), nil
	}

	var buf bytes.Buffer
	err := blockedPage.Execute(&buf, struct {
		Method string
		Path   string
	}{
		Method: r.Method,
		Path:   requestPath(r),
	})
	if err != nil {
		return nil, fmt.Errorf("render blocked request page: %w", err)
	}
	return buf.Bytes(), nil
}

func plainBody(r *http.Request) string {
	return fmt.Sprintf("Blocked request: %s %s\n", r.Method, requestPath(r))
}

func requestPath(r *http.Request) string {
	if r.URL == nil || r.URL.Path == "" {
		return "/"
	}
	return r.URL.Path
}

// Response is a fully composed rejection response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Write copies the response onto w.
func (resp Response) Write(w http.ResponseWriter) error {
	h := w.Header()
	for k, v := range resp.Header {
		h[k] = append([]string(nil), v...)
	}
	w.WriteHeader(resp.StatusCode)
	_, err := w.Write(resp.Body)
	return err
}

// Responder builds 403 responses for blocked requests.
type Responder struct {
	renderer Renderer
	charset  string
}

// NewResponder creates a Responder. A nil renderer uses DefaultRenderer.
func NewResponder(renderer Renderer) *Responder {
	if renderer == nil {
		renderer = DefaultRenderer{}
	}
	return &Responder{
		renderer: renderer,
		charset:  DefaultCharset,
	}
}

// Build composes the rejection response for r. A renderer error falls back
// to the plain-text body so the request is still rejected.
func (rs *Responder) Build(r *http.Request) Response {
	format := NegotiateFormat(r)

	body, err := rs.renderer.RenderForbidden(r, format)
	if err != nil {
		format = FormatText
		body = []byte(plainBody(r))
	}

	header := make(http.Header, 3)
	header.Set("Content-Type", string(format)+"; charset="+rs.charset)
	header.Set("Content-Length", strconv.Itoa(len(body)))
	header.Set("X-Content-Type-Options", "nosniff")

	return Response{
		StatusCode: http.StatusForbidden,
		Header:     header,
		Body:       body,
	}
}
