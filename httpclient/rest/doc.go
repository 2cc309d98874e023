// Package rest provides a JSON-focused REST client built on the HTTP adapter.
//
// It inherits all features from httpclient (auth, TLS, resilience)
// and adds typed convenience methods for common REST operations:
//
//	client, err := rest.New(httpclient.Config{
//	    BaseURL: "https://api.example.com",
//	    Auth:    httpclient.BearerAuth("token"),
//	    Retry:   httpclient.DefaultRetryConfig(),
//	})
//
//	// Typed GET
//	user, err := rest.Get[User](ctx, client, "/users/123")
//
//	// Typed POST
//	created, err := rest.Post[User](ctx, client, "/users", CreateUserRequest{Name: "Alice"})
//
package rest
