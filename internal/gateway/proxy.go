package gateway

import (
	"context"
	"io"
	"net/http"
)

// identityHeaders are set by the gateway after token verification and
// must never pass through from the client.
var identityHeaders = []string{"X-User-Id", "X-Admin"}

type ServiceProxy struct {
	baseURL string
	client  *http.Client
}

func NewServiceProxy(baseURL string, client *http.Client) *ServiceProxy {
	return &ServiceProxy{
		baseURL: baseURL,
		client:  client,
	}
}

// Forward sends the request upstream, carrying the content type and
// the gateway-set identity headers.
func (p *ServiceProxy) Forward(ctx context.Context, method, path string, body io.Reader, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return nil, err
	}

	if contentType := header.Get("Content-Type"); contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, h := range identityHeaders {
		if v := header.Get(h); v != "" {
			req.Header.Set(h, v)
		}
	}

	return p.client.Do(req)
}
