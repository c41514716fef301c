// Package providerhealth implements the provider-selection controller from §4.3:
// it probes both scraping providers on a fixed interval, caches the
// winner in process memory, and exposes a blocking-on-first-call
// GetActive(). Each provider's probe is wrapped in its own
// github.com/sony/gobreaker circuit breaker — already an indirect
// dependency of the teacher's go.mod — so a provider that starts
// chronically failing its health probe trips open and stops being
// retried every cycle until it recovers.
package providerhealth

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

const probeInterval = 60 * time.Second
const probeTimeout = 10 * time.Second

// ProviderName identifies one of the two scraping providers.
type ProviderName string

const (
	ProviderA ProviderName = "providerA"
	ProviderB ProviderName = "providerB"
)

// Prober issues a single HTTPS health check for one provider.
type Prober interface {
	Probe(ctx context.Context) error
}

// HTTPProber probes a provider by issuing a GET against its health URL
// and treating any 2xx or 429 response as healthy, per §4.3.
type HTTPProber struct {
	URL    string
	Client *http.Client
}

// NewHTTPProber builds an HTTPProber with a client timeout bound to the
// controller's fixed 10s probe timeout.
func NewHTTPProber(url string) *HTTPProber {
	return &HTTPProber{URL: url, Client: &http.Client{Timeout: probeTimeout}}
}

func (p *HTTPProber) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if (resp.StatusCode >= 200 && resp.StatusCode < 300) || resp.StatusCode == http.StatusTooManyRequests {
		return nil
	}
	return &unhealthyStatusError{status: resp.StatusCode}
}

type unhealthyStatusError struct{ status int }

func (e *unhealthyStatusError) Error() string {
	return "provider health probe returned unhealthy status"
}

// Controller caches the currently active provider, refreshed on a fixed
// interval, with a circuit breaker guarding each provider's probe.
type Controller struct {
	probers map[ProviderName]Prober
	order   []ProviderName

	mu     sync.RWMutex
	active *ProviderName

	breakers map[ProviderName]*gobreaker.CircuitBreaker

	initOnce sync.Once
	ready    chan struct{}
}

// NewController builds a controller that probes B before A, per §4.3's
// preferred order.
func NewController(providerA, providerB Prober) *Controller {
	c := &Controller{
		probers: map[ProviderName]Prober{ProviderA: providerA, ProviderB: providerB},
		order:   []ProviderName{ProviderB, ProviderA},
		breakers: map[ProviderName]*gobreaker.CircuitBreaker{
			ProviderA: newBreaker(ProviderA),
			ProviderB: newBreaker(ProviderB),
		},
		ready: make(chan struct{}),
	}
	return c
}

func newBreaker(name ProviderName) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        string(name),
		MaxRequests: 1,
		Interval:    0,
		Timeout:     probeInterval,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
}

// Run starts the periodic probe loop. It blocks until ctx is cancelled;
// callers should invoke it in its own goroutine.
func (c *Controller) Run(ctx context.Context) {
	c.probeOnce(ctx)
	c.initOnce.Do(func() { close(c.ready) })

	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.probeOnce(ctx)
		}
	}
}

func (c *Controller) probeOnce(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	for _, name := range c.order {
		prober := c.probers[name]
		breaker := c.breakers[name]

		_, err := breaker.Execute(func() (interface{}, error) {
			return nil, prober.Probe(probeCtx)
		})
		if err == nil {
			c.setActive(&name)
			return
		}
	}
	c.setActive(nil)
}

func (c *Controller) setActive(name *ProviderName) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = name
}

// GetActive blocks on the first call until an initial probe completes;
// subsequent calls are O(1). It returns false when both providers are
// down, which callers map to AllProvidersDown.
func (c *Controller) GetActive(ctx context.Context) (ProviderName, bool) {
	select {
	case <-c.ready:
	case <-ctx.Done():
		return "", false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.active == nil {
		return "", false
	}
	return *c.active, true
}
