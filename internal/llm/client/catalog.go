package llmclient

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// ClientFactory builds a provider client for one model identifier.
type ClientFactory func(ctx context.Context, model string, tokenCap int) (LLMClient, error)

// Provider describes one registered completion provider.
type Provider struct {
	Name          string
	CredentialEnv string
	Factory       ClientFactory
}

// Catalog maps provider names to factories. It is a plain value, not
// process-global state; callers construct one at startup.
type Catalog struct {
	providers map[string]Provider
}

func NewCatalog() *Catalog {
	return &Catalog{providers: map[string]Provider{}}
}

// Register adds a provider. Registering the same name twice is an error.
func (c *Catalog) Register(p Provider) error {
	name := strings.ToLower(strings.TrimSpace(p.Name))
	if name == "" {
		return fmt.Errorf("llmclient: provider name is required")
	}
	if p.Factory == nil {
		return fmt.Errorf("llmclient: provider %q has no factory", name)
	}
	if _, ok := c.providers[name]; ok {
		return fmt.Errorf("llmclient: provider %q already registered", name)
	}
	c.providers[name] = p
	return nil
}

// Lookup returns the provider registered under name.
func (c *Catalog) Lookup(name string) (Provider, bool) {
	p, ok := c.providers[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// New builds a client for the named provider and model.
func (c *Catalog) New(ctx context.Context, provider, model string, tokenCap int) (LLMClient, error) {
	p, ok := c.Lookup(provider)
	if !ok {
		return nil, fmt.Errorf("llmclient: unknown provider %q", provider)
	}
	return p.Factory(ctx, model, tokenCap)
}

// CredentialError reports whether the named provider's credential env var is
// set, used for the eager configuration probe before any request work.
func (c *Catalog) CredentialError(provider string) error {
	p, ok := c.Lookup(provider)
	if !ok {
		return fmt.Errorf("llmclient: unknown provider %q", provider)
	}
	if p.CredentialEnv == "" {
		return nil
	}
	if strings.TrimSpace(os.Getenv(p.CredentialEnv)) == "" {
		return fmt.Errorf("llmclient: %s is not set for provider %q", p.CredentialEnv, p.Name)
	}
	return nil
}

// DefaultCatalog registers the built-in providers.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	_ = c.Register(Provider{
		Name:          "gemini",
		CredentialEnv: "GEMINI_API_KEY",
		Factory: func(ctx context.Context, model string, tokenCap int) (LLMClient, error) {
			return NewGeminiClient(ctx, "", model, tokenCap)
		},
	})
	_ = c.Register(Provider{
		Name:          "groq",
		CredentialEnv: "GROQ_API_KEY",
		Factory: func(ctx context.Context, model string, tokenCap int) (LLMClient, error) {
			return NewGroqClient("", model, tokenCap)
		},
	})
	return c
}
