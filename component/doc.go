// Package component defines the core interfaces for lifecycle-managed
// infrastructure services in dispatch.
//
// Components represent services that require initialization, startup,
// shutdown, and health monitoring. They are registered with the bootstrap
// package for automatic lifecycle management.
//
// # Interfaces
//
//   - Component: core lifecycle interface (Name/Start/Stop/Health)
//   - Describable: bootstrap summary descriptions
//   - RouteProvider: HTTP route discovery for the startup summary
package component
