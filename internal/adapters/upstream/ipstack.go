package upstream

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/routegate/internal/core/domain"
)

const ipstackFields = "ip,city,region_name,country_name,latitude,longitude"

// ipstackPayload covers both the success and the error shape of the ipstack API.
type ipstackPayload struct {
	Success     *bool    `json:"success"`
	IP          string   `json:"ip"`
	City        string   `json:"city"`
	RegionName  string   `json:"region_name"`
	CountryName string   `json:"country_name"`
	Latitude    *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude   *float64 `json:"longitude" validate:"omitempty,longitude"`
	Error       *struct {
		Code int    `json:"code"`
		Type string `json:"type"`
		Info string `json:"info"`
	} `json:"error"`
}

// IPStackClient resolves IP addresses with the ipstack API.
type IPStackClient struct {
	baseURL   string
	accessKey string
	http      *httpClient
}

// NewIPStackClient creates an ipstack client.
func NewIPStackClient(baseURL, accessKey string, timeout time.Duration) *IPStackClient {
	return &IPStackClient{
		baseURL:   baseURL,
		accessKey: accessKey,
		http:      newHTTPClient("routegate-location", timeout),
	}
}

// Locate looks up ip. An empty ip asks ipstack for the caller's address.
// API-level failures and out-of-range coordinates are returned as
// *domain.GeolocationError.
func (c *IPStackClient) Locate(ctx context.Context, ip string) (*domain.LocationReport, error) {
	if ip == "" {
		ip = "check"
	}

	var payload ipstackPayload
	err := c.http.getJSON(ctx, func(req *fasthttp.Request) {
		req.SetRequestURI(c.baseURL + "/" + url.PathEscape(ip))
		args := req.URI().QueryArgs()
		args.Set("access_key", c.accessKey)
		args.Set("fields", ipstackFields)
	}, &payload)
	if errors.Is(err, errInvalidPayload) {
		return nil, &domain.GeolocationError{Info: "Invalid IPStack response"}
	}
	if err != nil {
		return nil, err
	}

	if (payload.Success != nil && !*payload.Success) || payload.Latitude == nil {
		info := "Unknown IPStack API error"
		if payload.Error != nil && payload.Error.Info != "" {
			info = payload.Error.Info
		}
		return nil, &domain.GeolocationError{Info: info}
	}

	return &domain.LocationReport{
		IP:          payload.IP,
		City:        payload.City,
		RegionName:  payload.RegionName,
		CountryName: payload.CountryName,
		Latitude:    payload.Latitude,
		Longitude:   payload.Longitude,
	}, nil
}
