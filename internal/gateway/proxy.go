package gateway

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// forwardedHeaders are copied from the client request to the upstream service.
// Everything else, cookies included, stays at the gateway.
var forwardedHeaders = []string{"Content-Type", "Accept", "Accept-Language", "X-User-ID", "X-Request-Id"}

// ServiceProxy relays requests to one upstream bakery service.
type ServiceProxy struct {
	baseURL string
	client  *http.Client
}

func NewServiceProxy(baseURL string, client *http.Client) *ServiceProxy {
	return &ServiceProxy{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// ForwardRequest sends r to path on the upstream, keeping the query string,
// body and the allow-listed headers. The caller closes the response body.
func (p *ServiceProxy) ForwardRequest(ctx context.Context, r *http.Request, path string) (*http.Response, error) {
	target := p.baseURL + path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	body := r.Body
	if r.ContentLength == 0 {
		body = http.NoBody
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return nil, err
	}
	req.ContentLength = r.ContentLength

	for _, name := range forwardedHeaders {
		if v := r.Header.Get(name); v != "" {
			req.Header.Set(name, v)
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		if prior := r.Header.Get("X-Forwarded-For"); prior != "" {
			host = prior + ", " + host
		}
		req.Header.Set("X-Forwarded-For", host)
	}
	if r.Host != "" {
		req.Header.Set("X-Forwarded-Host", r.Host)
	}

	return p.client.Do(req)
}
