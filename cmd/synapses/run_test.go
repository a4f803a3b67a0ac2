package main

import (
	"context"
	"testing"

	"github.com/CMBAgents/synapses/pkg/providers"
)

func fakeEnv(key string) string {
	if key == "OPENAI_API_KEY" {
		return "test-key"
	}
	return ""
}

func TestCredentialProbeResolvesWithoutDialing(t *testing.T) {
	resolver := providers.NewResolver(providers.NewRegistry(), nil, providers.WithEnvLookup(fakeEnv))
	probe := credentialProbe(resolver)

	// The probe takes no dialer, so it cannot reach a provider; a
	// resolvable credential set is the entire check.
	if err := probe(context.Background(), "openai"); err != nil {
		t.Errorf("probe should pass for provider with credentials: %v", err)
	}
	if err := probe(context.Background(), "mistral"); err == nil {
		t.Error("probe should fail for provider without credentials")
	}
}

func TestProbeTargets(t *testing.T) {
	registry := providers.NewRegistry()
	resolver := providers.NewResolver(registry, nil, providers.WithEnvLookup(fakeEnv))

	targets := probeTargets(registry, resolver)
	if len(targets) != 1 || targets[0] != "openai" {
		t.Errorf("probe targets = %v, want only openai", targets)
	}
}
