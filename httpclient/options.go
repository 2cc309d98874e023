package httpclient

import "net/http"

// Option customizes an Adapter after construction.
type Option func(*Adapter)

// WithHTTPClient replaces the underlying *http.Client. Useful for tests
// and for transports the config cannot express.
func WithHTTPClient(client *http.Client) Option {
	return func(a *Adapter) {
		a.httpClient = client
	}
}

// WithTransport replaces the transport on the underlying client while
// keeping its timeout.
func WithTransport(rt http.RoundTripper) Option {
	return func(a *Adapter) {
		a.httpClient.Transport = rt
	}
}
