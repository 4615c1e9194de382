package upstream

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/routegate/internal/core/domain"
)

// LocationClient calls the location service.
type LocationClient struct {
	baseURL string
	http    *httpClient
}

// NewLocationClient creates a client for the location service at baseURL.
func NewLocationClient(baseURL string, timeout time.Duration) *LocationClient {
	return &LocationClient{baseURL: baseURL, http: newHTTPClient("routegate-gateway", timeout)}
}

// Locate fetches the location of ip, or of the calling host when ip is empty.
func (c *LocationClient) Locate(ctx context.Context, ip string) (*domain.LocationReport, error) {
	var report domain.LocationReport
	err := c.http.getJSON(ctx, func(req *fasthttp.Request) {
		req.SetRequestURI(c.baseURL + "/location")
		if ip != "" {
			req.URI().QueryArgs().Set("ip", ip)
		}
	}, &report)
	if err != nil {
		return nil, err
	}
	return &report, nil
}
