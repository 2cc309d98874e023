// Package discovery provides service advertisement and discovery for
// dispatch services.
//
// It defines interfaces and types for registering the local service and for
// resolving healthy instances from pluggable backends. The package follows
// dispatch's component pattern with lifecycle management and health checks.
//
// # Architecture
//
//   - Registry: manages service registration and deregistration
//   - Discovery: resolves service instances by name
//   - Component: lifecycle wrapper that advertises the local service
//
// # Backends
//
//   - discovery/mdns: multicast DNS advertisement on the local link
//   - discovery/static: static list of endpoints for development/testing
package discovery
