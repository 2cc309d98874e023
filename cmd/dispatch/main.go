// Command dispatch pulls the binary workloads attached to a tagged release,
// serves them one at a time to HTTP-boot clients on the local link, tracks
// each through its boot/execution lifecycle via beacon notifications, and
// files every reported result as an issue.
//
//	dispatch --owner acme --repo payloads --tag v1.2.0 [--asset smoke.efi]...
//
// The process exits 0 iff every catalog workload reached Finished.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/skillsenselab/dispatch/beacon"
	"github.com/skillsenselab/dispatch/bootserver"
	"github.com/skillsenselab/dispatch/bootstrap"
	"github.com/skillsenselab/dispatch/config"
	"github.com/skillsenselab/dispatch/di"
	"github.com/skillsenselab/dispatch/discovery"
	"github.com/skillsenselab/dispatch/logger"
	"github.com/skillsenselab/dispatch/release"
	"github.com/skillsenselab/dispatch/server"
	"github.com/skillsenselab/dispatch/sink"
	"github.com/skillsenselab/dispatch/validation"
	"github.com/skillsenselab/dispatch/version"
	"github.com/skillsenselab/dispatch/workload"

	// Discovery providers register themselves.
	_ "github.com/skillsenselab/dispatch/discovery/mdns"
	_ "github.com/skillsenselab/dispatch/discovery/static"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		owner       = pflag.String("owner", "", "release owner (organization or user)")
		repo        = pflag.String("repo", "", "release repository")
		tag         = pflag.String("tag", "", "release tag to dispatch")
		assets      = pflag.StringArray("asset", nil, "restrict the catalog to this asset name (repeatable)")
		configFile  = pflag.String("config", "", "path to config.yml")
		showVersion = pflag.Bool("version", false, "print version and exit")
	)
	pflag.Parse()

	if *showVersion {
		fmt.Println(version.GetFullVersion())
		return 0
	}

	v := validation.New().
		Required("owner", *owner).
		Required("repo", *repo).
		Required("tag", *tag).
		Pattern("owner", *owner, `^[A-Za-z0-9][A-Za-z0-9-]*$`).
		Pattern("repo", *repo, `^[A-Za-z0-9._-]+$`)
	if appErr := v.Validate(); appErr != nil {
		fmt.Fprintln(os.Stderr, "dispatch:", appErr.Message)
		pflag.Usage()
		return 2
	}

	var cfg dispatchConfig
	var loadOpts []config.LoaderOption
	if *configFile != "" {
		loadOpts = append(loadOpts, config.WithConfigFile(*configFile))
	}
	if err := config.LoadConfig("dispatch", &cfg, loadOpts...); err != nil {
		fmt.Fprintln(os.Stderr, "dispatch: load config:", err)
		return 1
	}
	cfg.Catalog.Assets = append(cfg.Catalog.Assets, *assets...)

	// The sink files issues under the dispatched repository unless
	// configured otherwise.
	if cfg.Sink.Owner == "" {
		cfg.Sink.Owner = *owner
	}
	if cfg.Sink.Repo == "" {
		cfg.Sink.Repo = *repo
	}

	app, err := bootstrap.NewApp(&cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dispatch:", err)
		return 1
	}
	log := app.Logger

	cfg.Sink.ApplyDefaults()
	if err := cfg.Sink.Validate(); err != nil {
		log.Error("invalid sink configuration", logger.ErrorFields("config", err))
		return 1
	}

	// Build the catalog before anything serves: the listing fetch and the
	// admission filter are fatal at startup, not per-request.
	ctx := context.Background()
	releaseClient, err := release.NewClient(cfg.Release, log)
	if err != nil {
		log.Error("release client init failed", logger.ErrorFields("release", err))
		return 1
	}
	defer releaseClient.Close(ctx)

	sources, err := releaseClient.ListAssets(ctx, *owner, *repo, *tag)
	if err != nil {
		log.Error("release listing failed", logger.ErrorFields("release", err))
		return 1
	}

	catalog, err := workload.BuildCatalog(cfg.Catalog, sources, log)
	if err != nil {
		log.Error("catalog build failed", logger.ErrorFields("catalog", err))
		return 1
	}

	registry := workload.NewRegistry(catalog, log)
	queue := workload.NewQueue(registry)

	filer, err := sink.NewIssueTracker(cfg.Sink, log)
	if err != nil {
		log.Error("sink init failed", logger.ErrorFields("sink", err))
		return 1
	}
	defer filer.Close(ctx)

	dispatcher := sink.NewDispatcher(filer, registry, cfg.Sink.MaxConcurrent, log)

	srv := server.New(&cfg.Server, log)
	bootserver.Register(srv.GinEngine(), queue, registry, log)
	beacon.Register(srv.GinEngine(), registry, dispatcher, log)
	srv.ApplyDefaults(cfg.Name, app.Components.HealthAll)

	if err := app.RegisterComponent(dispatcher); err != nil {
		log.Error("component registration failed", logger.ErrorFields("sink", err))
		return 1
	}
	if err := app.RegisterComponent(server.NewComponent(srv)); err != nil {
		log.Error("component registration failed", logger.ErrorFields("server", err))
		return 1
	}
	if err := app.RegisterComponent(discovery.NewComponent(cfg.Discovery, nil, log)); err != nil {
		log.Error("component registration failed", logger.ErrorFields("discovery", err))
		return 1
	}

	// Singletons for the startup summary.
	_ = app.Container.RegisterSingleton(di.Dispatch.Catalog, catalog)
	_ = app.Container.RegisterSingleton(di.Dispatch.Registry, registry)
	_ = app.Container.RegisterSingleton(di.Dispatch.Queue, queue)
	_ = app.Container.RegisterSingleton(di.Dispatch.Release, releaseClient)
	_ = app.Container.RegisterSingleton(di.Dispatch.Sink, filer)

	app.Summary.TrackClient("github-release", cfg.Release.BaseURL, "ready", "http")
	app.Summary.TrackClient("issue-tracker", cfg.Sink.BaseURL, "ready", "http")

	log.Info("dispatch session starting", map[string]interface{}{
		"release":   fmt.Sprintf("%s/%s@%s", *owner, *repo, *tag),
		"workloads": catalog.Len(),
	})

	err = app.RunTask(ctx, func(taskCtx context.Context) error {
		select {
		case <-registry.Done():
		case <-taskCtx.Done():
			// External signal: leave non-terminal records as-is and exit
			// non-zero.
			return fmt.Errorf("interrupted with workloads outstanding")
		}

		// All records terminal; let pending sink work finish before the
		// components shut down.
		drainCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := dispatcher.Drain(drainCtx); err != nil {
			return fmt.Errorf("sink drain: %w", err)
		}

		summary := registry.Summary()
		log.Info("dispatch session complete", map[string]interface{}{
			"finished": summary[workload.StateFinished],
			"failed":   summary[workload.StateFailed],
		})
		if failed := summary[workload.StateFailed]; failed > 0 {
			return fmt.Errorf("%d workload(s) failed", failed)
		}
		return nil
	})
	if err != nil {
		log.Error("dispatch run failed", logger.ErrorFields("run", err))
		return 1
	}
	return 0
}
