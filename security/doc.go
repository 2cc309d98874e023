// Package security provides shared TLS configuration for dispatch's
// transport layers; httpclient re-exports it as httpclient.TLSConfig.
package security
