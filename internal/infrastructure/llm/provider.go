package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/smilecare/gateway/internal/domain/service"
	"go.uber.org/zap"
)

// Provider is the infrastructure-layer inference provider.
// Each provider implements service.LLMClient for its own function-calling API.
type Provider interface {
	service.LLMClient

	// Name returns the provider identifier (e.g. "gemini", "openai")
	Name() string

	// IsAvailable reports whether the provider is configured well enough to be called
	IsAvailable(ctx context.Context) bool
}

// ProviderConfig holds configuration for an inference provider.
type ProviderConfig struct {
	Name    string `json:"name"`
	Type    string `json:"type"` // "gemini" (default) | "openai"
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
}

// --- Provider Factory Registry ---
// Providers register themselves via init() in their own package.

// ProviderFactory creates a Provider from config.
type ProviderFactory func(cfg ProviderConfig, logger *zap.Logger) Provider

var (
	factoryMu sync.RWMutex
	factories = map[string]ProviderFactory{}
)

// RegisterFactory registers a provider factory for the given type name.
func RegisterFactory(typeName string, factory ProviderFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[typeName] = factory
}

// CreateProvider creates a Provider using the registered factory for cfg.Type.
// An empty Type selects "gemini".
func CreateProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	t := cfg.Type
	if t == "" {
		t = "gemini"
	}

	factoryMu.RLock()
	defer factoryMu.RUnlock()

	factory, ok := factories[t]
	if !ok {
		available := make([]string, 0, len(factories))
		for k := range factories {
			available = append(available, k)
		}
		sort.Strings(available)
		return nil, fmt.Errorf("unknown provider type %q (available: %v)", t, available)
	}

	if cfg.Name == "" {
		cfg.Name = t
	}
	return factory(cfg, logger), nil
}
