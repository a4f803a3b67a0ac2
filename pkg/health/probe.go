package health

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ProbeFunc checks whether a provider is currently usable. It returns nil
// when the provider looks healthy.
type ProbeFunc func(ctx context.Context, provider string) error

// Prober runs scheduled availability probes against a fixed set of providers
// and feeds the outcomes into the registry. Probes give unavailable
// providers a path back to available even when no user traffic reaches them.
type Prober struct {
	registry  *Registry
	providers []string
	probe     ProbeFunc
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger

	cron *cron.Cron
}

// NewProber creates a prober. providers is the set of registry keys to
// probe each cycle; probe is invoked once per provider with a per-probe
// timeout.
func NewProber(registry *Registry, providers []string, probe ProbeFunc, interval, timeout time.Duration, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		registry:  registry,
		providers: providers,
		probe:     probe,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
	}
}

// Start schedules the probe cycle and runs one immediately so the registry
// is populated before the first interval elapses.
func (p *Prober) Start() error {
	if p.cron != nil {
		return fmt.Errorf("prober already started")
	}

	c := cron.New()
	spec := fmt.Sprintf("@every %s", p.interval)
	if _, err := c.AddFunc(spec, p.RunOnce); err != nil {
		return fmt.Errorf("failed to schedule probes: %w", err)
	}
	p.cron = c
	c.Start()

	go p.RunOnce()
	return nil
}

// Stop cancels the probe schedule and waits for a running cycle to finish.
func (p *Prober) Stop() {
	if p.cron == nil {
		return
	}
	<-p.cron.Stop().Done()
	p.cron = nil
}

// RunOnce probes every configured provider once.
func (p *Prober) RunOnce() {
	for _, provider := range p.providers {
		p.probeOne(provider)
	}
}

func (p *Prober) probeOne(provider string) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	start := time.Now()
	err := p.probe(ctx, provider)
	elapsed := time.Since(start)

	if err != nil {
		p.logger.Debug("probe failed",
			"provider", provider,
			"elapsed", elapsed,
			"error", err,
		)
		p.registry.ReportProbe(provider, false, err)
		return
	}
	p.registry.ReportProbe(provider, true, nil)
}
