package providers

import (
	"log/slog"
	"os"
	"strings"
)

// Resolution is the result of resolving a composite model id and a
// caller-supplied credential set against the registry and the environment.
type Resolution struct {
	// Identity is the provider the request will be sent to.
	Identity Identity

	// Model is the provider-local model identifier.
	Model string

	// Credentials is the effective credential field map for the provider.
	Credentials map[string]string

	// Recognized is false when the requested provider key was unknown and
	// the request was routed to the default aggregator instead.
	Recognized bool
}

// Resolver merges caller-supplied per-request credentials with process-wide
// environment defaults and maps composite model ids onto registry identities.
type Resolver struct {
	registry *Registry
	logger   *slog.Logger

	// env is the environment lookup, injectable for tests.
	env func(string) string

	// onUnrecognized is invoked when an unknown provider key is routed to
	// the default aggregator. Used to feed metrics.
	onUnrecognized func(key string)
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithEnvLookup overrides the environment lookup function.
func WithEnvLookup(env func(string) string) ResolverOption {
	return func(r *Resolver) { r.env = env }
}

// WithUnrecognizedHook registers a callback fired when an unknown provider
// key is softly routed to the default aggregator.
func WithUnrecognizedHook(fn func(key string)) ResolverOption {
	return func(r *Resolver) { r.onUnrecognized = fn }
}

// NewResolver creates a credential resolver over the given registry.
func NewResolver(registry *Registry, logger *slog.Logger, opts ...ResolverOption) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		registry: registry,
		logger:   logger,
		env:      os.Getenv,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve maps a composite model id ("<provider>/<model>") and supplied
// credentials to a provider identity, a provider-local model name, and an
// effective credential map.
//
// Caller-supplied credentials win over environment defaults field by field.
// A required field present in neither yields *CredentialsMissingError.
//
// Unknown provider keys do not fail: the request is routed to the default
// aggregator with the full composite id as the model (aggregators use
// "vendor/model" ids natively). This softness is deliberate, but it is a
// correctness risk worth surfacing, so it is logged loudly and counted.
func (r *Resolver) Resolve(modelID string, supplied CredentialSet) (*Resolution, error) {
	identity, model, recognized := r.route(modelID)

	if !recognized {
		r.logger.Warn("unrecognized provider, routed to default",
			"model_id", modelID,
			"default_provider", identity.Key,
		)
		if r.onUnrecognized != nil {
			r.onUnrecognized(providerPart(modelID))
		}
	}

	creds, err := r.effectiveCredentials(identity, supplied)
	if err != nil {
		return nil, err
	}

	return &Resolution{
		Identity:    identity,
		Model:       model,
		Credentials: creds,
		Recognized:  recognized,
	}, nil
}

// route maps a composite model id to an identity and provider-local model.
func (r *Resolver) route(modelID string) (Identity, string, bool) {
	provider, model, found := strings.Cut(modelID, "/")
	if !found {
		// Bare model id: route to the aggregator, which accepts plain
		// vendor model names as well.
		def := r.registry.Default()
		if modelID == "" {
			return def, def.DefaultModel, true
		}
		if id, ok := r.registry.Lookup(modelID); ok {
			// Bare provider key ("openai"): use its default model.
			return id, id.DefaultModel, true
		}
		return def, modelID, false
	}

	id, ok := r.registry.Lookup(provider)
	if !ok {
		// Unknown provider: hand the full composite id to the aggregator.
		return r.registry.Default(), modelID, false
	}
	if model == "" {
		model = id.DefaultModel
	}
	return id, model, true
}

// effectiveCredentials merges supplied credentials over environment defaults
// and verifies all required fields are present.
func (r *Resolver) effectiveCredentials(identity Identity, supplied CredentialSet) (map[string]string, error) {
	fromCaller := supplied[identity.Key]

	creds := make(map[string]string, len(identity.RequiredFields))
	for field, env := range identity.CredentialEnv {
		if val := r.env(env); val != "" {
			creds[field] = val
		}
	}
	for field, val := range fromCaller {
		if val != "" {
			creds[field] = val
		}
	}

	for _, field := range identity.RequiredFields {
		if creds[field] == "" {
			return nil, &CredentialsMissingError{Provider: identity.Key, Field: field}
		}
	}

	return creds, nil
}

// providerPart returns the provider segment of a composite model id.
func providerPart(modelID string) string {
	if provider, _, found := strings.Cut(modelID, "/"); found {
		return provider
	}
	return modelID
}
