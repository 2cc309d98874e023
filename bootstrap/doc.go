// Package bootstrap orchestrates application lifecycle for dispatch services.
//
// It provides typed configuration defaulting and validation, component
// registration, dependency injection, and startup/shutdown hooks for rapid
// service initialization. Loading the configuration is left to the caller
// (see package config).
//
// # Quick Start
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(serverComponent)
//	if err := app.RunTask(ctx, task); err != nil {
//	    log.Fatal(err)
//	}
//
// The bootstrap package handles component initialization in registration
// order, graceful shutdown on OS signals, and health aggregation.
package bootstrap
