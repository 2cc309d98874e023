package di

// ServiceNames defines the component names dispatch registers in the DI
// container for startup-summary introspection.
type ServiceNames struct {
	// Core infrastructure
	Config    string
	Logger    string
	Catalog   string
	Registry  string
	Queue     string
	Discovery string

	// HTTP surface
	HTTPServer string
	BootRoutes string
	Beacon     string

	// Outbound collaborators
	Release string
	Sink    string
}

// Dispatch contains all component names for the dispatch service.
var Dispatch = ServiceNames{
	Config:    "config",
	Logger:    "logger",
	Catalog:   "workload_catalog",
	Registry:  "workload_registry",
	Queue:     "dispatch_queue",
	Discovery: "service_discovery",

	HTTPServer: "http_server",
	BootRoutes: "boot_routes",
	Beacon:     "beacon_routes",

	Release: "release_client",
	Sink:    "result_sink",
}
