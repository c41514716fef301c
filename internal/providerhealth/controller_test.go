package providerhealth

import (
	"context"
	"errors"
	"testing"
)

type fakeProber struct {
	healthy bool
}

func (f *fakeProber) Probe(ctx context.Context) error {
	if f.healthy {
		return nil
	}
	return errors.New("unhealthy")
}

func TestGetActivePrefersProviderB(t *testing.T) {
	a := &fakeProber{healthy: true}
	b := &fakeProber{healthy: true}
	c := NewController(a, b)

	c.probeOnce(context.Background())
	c.initOnce.Do(func() { close(c.ready) })

	active, ok := c.GetActive(context.Background())
	if !ok || active != ProviderB {
		t.Fatalf("expected providerB active, got %v ok=%v", active, ok)
	}
}

func TestGetActiveFallsBackToProviderA(t *testing.T) {
	a := &fakeProber{healthy: true}
	b := &fakeProber{healthy: false}
	c := NewController(a, b)

	c.probeOnce(context.Background())
	c.initOnce.Do(func() { close(c.ready) })

	active, ok := c.GetActive(context.Background())
	if !ok || active != ProviderA {
		t.Fatalf("expected providerA active, got %v ok=%v", active, ok)
	}
}

func TestGetActiveAllProvidersDown(t *testing.T) {
	a := &fakeProber{healthy: false}
	b := &fakeProber{healthy: false}
	c := NewController(a, b)

	c.probeOnce(context.Background())
	c.initOnce.Do(func() { close(c.ready) })

	_, ok := c.GetActive(context.Background())
	if ok {
		t.Fatalf("expected AllProvidersDown when both probes fail")
	}
}

func TestGetActiveBlocksUntilFirstProbe(t *testing.T) {
	a := &fakeProber{healthy: true}
	b := &fakeProber{healthy: true}
	c := NewController(a, b)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, ok := c.GetActive(ctx); ok {
		t.Fatalf("expected GetActive to respect cancelled context before first probe completes")
	}
}
