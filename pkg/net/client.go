package net

import (
	"net/http"
	"time"
)

const (
	maxIdleConns     = 10
	timeoutInSeconds = 60
	clientAgent      = "peptopt"
)

// NewHTTPClient returns the client used for remote artifact reads. Every
// request carries the peptopt User-Agent.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: timeoutInSeconds * time.Second,
		Transport: &agentTransport{
			base: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				MaxIdleConns:          maxIdleConns,
				IdleConnTimeout:       timeoutInSeconds * time.Second,
				DisableKeepAlives:     false,
				ResponseHeaderTimeout: timeoutInSeconds * time.Second,
			},
		},
	}
}

type agentTransport struct {
	base http.RoundTripper
}

func (t *agentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", clientAgent)
	}
	return t.base.RoundTrip(req)
}
