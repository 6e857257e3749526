package llm

import (
	"fmt"
	"strings"
	"sync"

	"github.com/mfelder/turnstile/internal/logging"
)

// ResolutionErrorKind classifies why a model reference failed to resolve.
type ResolutionErrorKind string

const (
	ErrBlankRef        ResolutionErrorKind = "blank_ref"
	ErrMissingModelID  ResolutionErrorKind = "missing_model_id"
	ErrMissingProvider ResolutionErrorKind = "missing_provider_prefix"
	ErrUnknownProvider ResolutionErrorKind = "unknown_provider"
	ErrNoProviders     ResolutionErrorKind = "no_providers"
)

// ResolutionError reports a model-reference resolution failure. These are
// configuration errors and fatal to the run that hits them.
type ResolutionError struct {
	Kind ResolutionErrorKind
	Ref  string
}

func (e *ResolutionError) Error() string {
	switch e.Kind {
	case ErrBlankRef:
		return "model ref is blank"
	case ErrMissingModelID:
		return fmt.Sprintf("model ref %q is missing a model id", e.Ref)
	case ErrMissingProvider:
		return fmt.Sprintf("model ref %q is missing a provider prefix", e.Ref)
	case ErrUnknownProvider:
		return fmt.Sprintf("model ref %q names an unregistered provider", e.Ref)
	case ErrNoProviders:
		return "no model providers configured"
	}
	return fmt.Sprintf("cannot resolve model ref %q", e.Ref)
}

// ModelRef is a parsed provider/model identifier.
type ModelRef struct {
	Provider string
	Model    string
}

func (r ModelRef) String() string { return r.Provider + "/" + r.Model }

// Registry manages provider clients and resolves model references.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
	log     *logging.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		clients: make(map[string]Client),
		log:     log.Sub("llm.registry"),
	}
}

// Register adds a client under the given provider name.
func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
	r.log.Info().Str("provider", name).Msg("registered model provider")
}

// Get returns the client registered under the provider name.
func (r *Registry) Get(name string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[name]
	return c, ok
}

// List returns all registered provider names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	return names
}

// ResolveRef parses a "provider/model" reference and returns the registered
// client for its provider. All failure modes are typed ResolutionErrors.
func (r *Registry) ResolveRef(ref string) (Client, ModelRef, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ModelRef{}, &ResolutionError{Kind: ErrBlankRef, Ref: ref}
	}

	provider, model, found := strings.Cut(ref, "/")
	if !found || provider == "" {
		return nil, ModelRef{}, &ResolutionError{Kind: ErrMissingProvider, Ref: ref}
	}
	if model == "" {
		return nil, ModelRef{}, &ResolutionError{Kind: ErrMissingModelID, Ref: ref}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.clients) == 0 {
		return nil, ModelRef{}, &ResolutionError{Kind: ErrNoProviders, Ref: ref}
	}
	client, ok := r.clients[provider]
	if !ok {
		return nil, ModelRef{}, &ResolutionError{Kind: ErrUnknownProvider, Ref: ref}
	}
	return client, ModelRef{Provider: provider, Model: model}, nil
}
