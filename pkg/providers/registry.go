package providers

import "sort"

// Registry holds the static table of provider identities.
// The table is built once at process start; identities are never mutated.
type Registry struct {
	identities map[string]Identity

	// defaultKey is the aggregator provider unrecognized model ids are
	// routed to instead of failing outright.
	defaultKey string
}

// builtinIdentities is the static provider table.
//
// OpenAI-compatible providers carry a single apiKey credential. Vertex is
// the one vendor-specific dialect and needs a project, a location, and a
// service account blob (or key) to construct its endpoint and auth.
var builtinIdentities = []Identity{
	{
		Key:            "openai",
		BaseURL:        "https://api.openai.com/v1",
		DefaultModel:   "gpt-4o",
		Dialect:        DialectOpenAI,
		CredentialEnv:  map[string]string{FieldAPIKey: "OPENAI_API_KEY"},
		RequiredFields: []string{FieldAPIKey},
	},
	{
		Key:            "mistral",
		BaseURL:        "https://api.mistral.ai/v1",
		DefaultModel:   "mistral-large-latest",
		Dialect:        DialectOpenAI,
		CredentialEnv:  map[string]string{FieldAPIKey: "MISTRAL_API_KEY"},
		RequiredFields: []string{FieldAPIKey},
	},
	{
		Key:            "deepseek",
		BaseURL:        "https://api.deepseek.com/v1",
		DefaultModel:   "deepseek-chat",
		Dialect:        DialectOpenAI,
		CredentialEnv:  map[string]string{FieldAPIKey: "DEEPSEEK_API_KEY"},
		RequiredFields: []string{FieldAPIKey},
	},
	{
		Key:            "openrouter",
		BaseURL:        "https://openrouter.ai/api/v1",
		DefaultModel:   "openai/gpt-4o-mini",
		Dialect:        DialectOpenAI,
		CredentialEnv:  map[string]string{FieldAPIKey: "OPENROUTER_API_KEY"},
		RequiredFields: []string{FieldAPIKey},
	},
	{
		Key:          "vertex",
		BaseURL:      "https://{location}-aiplatform.googleapis.com/v1",
		DefaultModel: "gemini-1.5-pro",
		Dialect:      DialectVertex,
		CredentialEnv: map[string]string{
			FieldProjectID: "VERTEX_PROJECT_ID",
			FieldLocation:  "VERTEX_LOCATION",
			// A pre-minted OAuth2 access token, e.g. from
			// `gcloud auth print-access-token`.
			FieldServiceAccount: "VERTEX_ACCESS_TOKEN",
		},
		RequiredFields: []string{FieldProjectID, FieldLocation, FieldServiceAccount},
	},
}

// NewRegistry creates a registry from the built-in provider table.
func NewRegistry() *Registry {
	r := &Registry{
		identities: make(map[string]Identity, len(builtinIdentities)),
		defaultKey: "openrouter",
	}
	for _, id := range builtinIdentities {
		r.identities[id.Key] = id
	}
	return r
}

// Lookup returns the identity for a provider key.
func (r *Registry) Lookup(key string) (Identity, bool) {
	id, ok := r.identities[key]
	return id, ok
}

// Default returns the aggregator identity unrecognized providers route to.
func (r *Registry) Default() Identity {
	return r.identities[r.defaultKey]
}

// Keys returns all registered provider keys in sorted order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.identities))
	for key := range r.identities {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Override replaces selected identity fields for a provider.
// Used at startup to apply configuration overrides (base URL, default
// model); the resulting identity is as immutable as the built-in one.
func (r *Registry) Override(key, baseURL, defaultModel string) {
	id, ok := r.identities[key]
	if !ok {
		return
	}
	if baseURL != "" {
		id.BaseURL = baseURL
	}
	if defaultModel != "" {
		id.DefaultModel = defaultModel
	}
	r.identities[key] = id
}
