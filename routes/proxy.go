package routes

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/upb/fetchguard/middleware"
	"github.com/upb/fetchguard/utils"
	"go.uber.org/zap"
)

// NewUpstreamProxy builds the reverse proxy that forwards allowed requests
// to the protected application
func NewUpstreamProxy(rawURL string, flushInterval time.Duration, logger *zap.Logger) (*httputil.ReverseProxy, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid upstream URL %q: must be absolute", rawURL)
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		FlushInterval: flushInterval,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			if errors.Is(err, http.ErrAbortHandler) {
				panic(err)
			}
			logger.Error("upstream request failed",
				zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Error(err))
			_ = utils.WriteError(w, http.StatusBadGateway, "Upstream unavailable", nil)
		},
	}, nil
}
