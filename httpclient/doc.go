// Package httpclient provides a configurable HTTP adapter with built-in
// authentication, TLS, and resilience (retry, circuit breaker, rate limiting).
// Response bodies are read whole into Response.Body; the adapter does not
// stream responses.
//
// # Basic Usage
//
//	adapter, _ := httpclient.New(httpclient.Config{
//	    Name:    "my-api",
//	    BaseURL: "https://api.example.com",
//	    Timeout: 30 * time.Second,
//	    Auth:    httpclient.BearerAuth("my-token"),
//	})
//
//	resp, err := adapter.Do(ctx, httpclient.Request{
//	    Method: http.MethodGet,
//	    Path:   "/users/123",
//	})
//
package httpclient
