// Package di provides a dependency injection container for dispatch services.
//
// It supports eager, lazy, and singleton registration modes with type-safe
// resolution using Go generics. The container enables decoupled architecture
// by managing service dependencies and their lifecycle.
//
// # Registration
//
//	container.Register("service.catalog", func() (*Catalog, error) {
//	    return NewCatalog(), nil
//	})
//
// # Resolution
//
//	svc := di.MustResolve[*Catalog](container, "service.catalog")
package di
