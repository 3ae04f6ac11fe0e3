package ai

import (
	"strings"
	"sync"

	"github.com/local/medextract/internal/config"
	"github.com/rs/zerolog/log"
)

// canonical maps provider aliases to provider names.
var canonical = map[string]string{
	"claude":    "claude",
	"anthropic": "claude",
	"grok":      "grok",
	"xai":       "grok",
}

// Registry hands out provider clients by name. Clients are built
// lazily and cached; a missing API key only surfaces at call time so
// the catalog can list providers that are configured but unusable.
type Registry struct {
	cfg config.ProvidersConfig

	mu      sync.Mutex
	clients map[string]Client
}

func NewRegistry(cfg config.ProvidersConfig) *Registry {
	return &Registry{cfg: cfg, clients: make(map[string]Client)}
}

// Resolve returns the canonical provider name for raw, falling back to
// the configured default for unknown or empty input.
func (r *Registry) Resolve(raw string) string {
	name, ok := canonical[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		def, defOK := canonical[r.cfg.Default]
		if !defOK {
			def = "claude"
		}
		if raw != "" {
			log.Warn().Str("provider", raw).Str("fallback", def).Msg("unknown provider requested")
		}
		return def
	}
	return name
}

// Client returns the cached client for the given provider name or
// alias.
func (r *Registry) Client(raw string) Client {
	name := r.Resolve(raw)

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[name]; ok {
		return c
	}

	var c Client
	switch name {
	case "grok":
		p := r.cfg.Grok
		c = NewGrokClient(p.APIKey, p.BaseURL, p.DefaultModel, p.Timeout)
	default:
		p := r.cfg.Claude
		c = NewClaudeClient(p.APIKey, p.BaseURL, p.DefaultModel, p.Timeout)
	}
	r.clients[name] = c
	return c
}

// ProviderInfo describes one provider for the catalog endpoint.
type ProviderInfo struct {
	Name       string   `json:"name"`
	Aliases    []string `json:"aliases"`
	Model      string   `json:"default_model"`
	Configured bool     `json:"configured"`
	Default    bool     `json:"default"`
}

// Catalog lists the known providers and whether each has credentials.
func (r *Registry) Catalog() []ProviderInfo {
	def := r.Resolve(r.cfg.Default)
	return []ProviderInfo{
		{
			Name:       "claude",
			Aliases:    []string{"anthropic"},
			Model:      r.cfg.Claude.DefaultModel,
			Configured: r.cfg.Claude.APIKey != "",
			Default:    def == "claude",
		},
		{
			Name:       "grok",
			Aliases:    []string{"xai"},
			Model:      r.cfg.Grok.DefaultModel,
			Configured: r.cfg.Grok.APIKey != "",
			Default:    def == "grok",
		},
	}
}
