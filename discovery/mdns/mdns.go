// Package mdns implements a discovery provider that advertises services on
// the local link via multicast DNS. It is the backend used to announce the
// boot HTTP service to link-local firmware; advertisement is informational
// and not part of dispatch correctness.
package mdns

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"

	"github.com/skillsenselab/dispatch/discovery"
	"github.com/skillsenselab/dispatch/logger"
)

func init() {
	discovery.RegisterProviderFactory("mdns", func(cfg discovery.Config, _ any, log *logger.Logger) (discovery.Registry, discovery.Discovery, error) {
		p, err := NewProvider(cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return p, p, nil
	})
}

// Provider implements discovery.Registry and discovery.Discovery on top of
// hashicorp/mdns. Each registered service runs its own mDNS responder.
type Provider struct {
	cfg   discovery.Config
	log   *logger.Logger
	iface *net.Interface

	mu      sync.Mutex
	servers map[string]*mdns.Server // keyed by service ID
}

// NewProvider creates an mDNS provider from the discovery config.
func NewProvider(cfg discovery.Config, log *logger.Logger) (*Provider, error) {
	p := &Provider{
		cfg:     cfg,
		log:     log,
		servers: make(map[string]*mdns.Server),
	}
	if cfg.MDNSInterface != "" {
		iface, err := net.InterfaceByName(cfg.MDNSInterface)
		if err != nil {
			return nil, fmt.Errorf("mdns: interface %q: %w", cfg.MDNSInterface, err)
		}
		p.iface = iface
	}
	return p, nil
}

// serviceType derives the DNS-SD service type from a service name,
// e.g. "dispatch-boot" -> "_dispatch-boot._tcp".
func serviceType(name string) string {
	return "_" + strings.TrimPrefix(name, "_") + "._tcp"
}

// --- Registry implementation ---

// Register starts an mDNS responder advertising the service instance.
func (p *Provider) Register(_ context.Context, svc *discovery.ServiceInfo) error {
	ip := net.ParseIP(svc.Address)
	if ip == nil {
		return fmt.Errorf("mdns: service address %q is not an IP", svc.Address)
	}

	info := make([]string, 0, len(svc.Tags)+len(svc.Metadata))
	info = append(info, svc.Tags...)
	for k, v := range svc.Metadata {
		info = append(info, k+"="+v)
	}

	zone, err := mdns.NewMDNSService(svc.ID, serviceType(svc.Name), p.cfg.MDNSDomain, "",
		svc.Port, []net.IP{ip}, info)
	if err != nil {
		return fmt.Errorf("mdns: build zone for %s: %w", svc.Name, err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: zone, Iface: p.iface})
	if err != nil {
		return fmt.Errorf("mdns: start responder for %s: %w", svc.Name, err)
	}

	p.mu.Lock()
	p.servers[svc.ID] = server
	p.mu.Unlock()

	p.log.Info("mdns advertisement started", map[string]interface{}{
		"service": svc.Name,
		"address": svc.Address,
		"port":    svc.Port,
	})
	return nil
}

// Deregister shuts down the responder for the given service ID.
func (p *Provider) Deregister(_ context.Context, serviceID string) error {
	p.mu.Lock()
	server, ok := p.servers[serviceID]
	delete(p.servers, serviceID)
	p.mu.Unlock()

	if !ok {
		return nil
	}
	return server.Shutdown()
}

// UpdateHealth is a no-op: mDNS has no per-instance health channel; an
// unhealthy instance simply stops responding.
func (p *Provider) UpdateHealth(_ context.Context, _ string, _ bool, _ string) error {
	return nil
}

// Stats returns the number of active advertisements.
func (p *Provider) Stats() discovery.RegistryStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return discovery.RegistryStats{
		RegisteredServices: len(p.servers),
		LastHeartbeat:      time.Now(),
	}
}

// --- Discovery implementation ---

// Discover browses the local link for instances of the named service.
func (p *Provider) Discover(ctx context.Context, serviceName string) ([]discovery.ServiceInstance, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	var instances []discovery.ServiceInstance

	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range entries {
			instances = append(instances, entryToInstance(serviceName, entry))
		}
	}()

	params := &mdns.QueryParam{
		Service:             serviceType(serviceName),
		Domain:              strings.TrimSuffix(p.cfg.MDNSDomain, "."),
		Timeout:             2 * time.Second,
		Entries:             entries,
		Interface:           p.iface,
		DisableIPv6:         true,
		WantUnicastResponse: true,
	}
	err := mdns.Query(params)
	close(entries)
	<-done

	if err != nil {
		return nil, fmt.Errorf("mdns: query %s: %w", serviceName, err)
	}
	if len(instances) == 0 {
		return nil, fmt.Errorf("%w: %s", discovery.ErrServiceNotFound, serviceName)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return instances, nil
}

// Watch polls the local link on an interval and emits the instance set when
// the number of instances changes; a change that leaves the count the same is
// not emitted. The goroutine exits when the context is cancelled.
func (p *Provider) Watch(ctx context.Context, serviceName string) (<-chan []discovery.ServiceInstance, error) {
	ch := make(chan []discovery.ServiceInstance, 1)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		var lastCount int
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				instances, err := p.Discover(ctx, serviceName)
				if err != nil {
					continue
				}
				if len(instances) != lastCount {
					lastCount = len(instances)
					select {
					case ch <- instances:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return ch, nil
}

// Close shuts down all active responders.
func (p *Provider) Close() error {
	p.mu.Lock()
	servers := p.servers
	p.servers = make(map[string]*mdns.Server)
	p.mu.Unlock()

	var firstErr error
	for id, server := range servers {
		if err := server.Shutdown(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("mdns: shutdown %s: %w", id, err)
		}
	}
	return firstErr
}

func entryToInstance(serviceName string, entry *mdns.ServiceEntry) discovery.ServiceInstance {
	addr := ""
	if entry.AddrV4 != nil {
		addr = entry.AddrV4.String()
	} else if entry.AddrV6 != nil {
		addr = entry.AddrV6.String()
	}

	metadata := make(map[string]string)
	var tags []string
	for _, field := range entry.InfoFields {
		if k, v, ok := strings.Cut(field, "="); ok {
			metadata[k] = v
		} else if field != "" {
			tags = append(tags, field)
		}
	}

	return discovery.ServiceInstance{
		ID:       entry.Name,
		Name:     serviceName,
		Address:  addr,
		Port:     entry.Port,
		Tags:     tags,
		Metadata: metadata,
		Health:   discovery.HealthHealthy,
		LastSeen: time.Now(),
	}
}

// Compile-time checks.
var (
	_ discovery.Registry  = (*Provider)(nil)
	_ discovery.Discovery = (*Provider)(nil)
)
