package workload

import (
	apperrors "github.com/skillsenselab/dispatch/errors"
	"github.com/skillsenselab/dispatch/logger"
	"github.com/skillsenselab/dispatch/util"
)

// Catalog is the frozen set of workloads for one dispatch run. It is built
// once at startup from a release listing and never mutated afterwards;
// indices into it are stable for the lifetime of the process.
type Catalog struct {
	entries []*Workload
}

// BuildCatalog admits sources through the content-type translation table and
// the optional name filter, preserving listing order. It returns CatalogEmpty
// if nothing survives.
func BuildCatalog(cfg Config, sources []Source, log *logger.Logger) (*Catalog, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := log.WithComponent("catalog")

	entries := make([]*Workload, 0, len(sources))
	for _, src := range sources {
		served, ok := ServedContentType(src.ContentType())
		if !ok {
			l.Debug("asset rejected by content-type filter", map[string]interface{}{
				logger.FieldWorkload: src.Name(),
				"content_type":       src.ContentType(),
			})
			continue
		}
		if len(cfg.Assets) > 0 && !util.StringInSlice(src.Name(), cfg.Assets) {
			l.Debug("asset rejected by name filter", map[string]interface{}{
				logger.FieldWorkload: src.Name(),
			})
			continue
		}
		if cfg.MaxAssets > 0 && len(entries) >= cfg.MaxAssets {
			l.Warn("asset dropped: catalog at max_assets", map[string]interface{}{
				logger.FieldWorkload: src.Name(),
				"max_assets":         cfg.MaxAssets,
			})
			continue
		}

		entries = append(entries, &Workload{
			Name:        src.Name(),
			Size:        src.Size(),
			ContentType: served,
			source:      src,
		})
	}

	if len(entries) == 0 {
		return nil, apperrors.CatalogEmpty()
	}

	l.Info("catalog built", map[string]interface{}{
		"admitted": len(entries),
		"listed":   len(sources),
	})
	return &Catalog{entries: entries}, nil
}

// Len returns the number of admitted workloads.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// At returns the workload at the given catalog index.
func (c *Catalog) At(idx int) *Workload {
	return c.entries[idx]
}

// Workloads returns the admitted entries in listing order. The returned
// slice is a copy; the catalog itself stays frozen.
func (c *Catalog) Workloads() []*Workload {
	out := make([]*Workload, len(c.entries))
	copy(out, c.entries)
	return out
}
