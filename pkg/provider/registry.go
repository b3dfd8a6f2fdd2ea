package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/nxgate/nxgate/pkg/debug"
)

// Route binds a client model alias to a provider and the upstream model id
// that provider expects.
type Route struct {
	Provider Provider
	Upstream string
}

// ImageRoute binds an image model alias to a generator.
type ImageRoute struct {
	Generator ImageGenerator
	Upstream  string
}

// ModelEntry describes one chat model alias and every provider serving it.
type ModelEntry struct {
	ID     string
	Owners []string
}

// Registry maps model aliases to providers. Chat and image models are
// kept in separate tables. When several providers serve the same alias,
// the first registered one wins.
type Registry struct {
	mu     sync.RWMutex
	chat   map[string][]Route
	images map[string][]ImageRoute
	listed []Provider
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		chat:   make(map[string][]Route),
		images: make(map[string][]ImageRoute),
	}
}

// Register adds chat routes. models maps alias to upstream id; an empty
// upstream id means the alias is passed through unchanged. Providers that
// implement ModelLister are remembered for Discover.
func (r *Registry) Register(p Provider, models map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for alias, upstream := range models {
		r.addChatLocked(p, alias, upstream)
	}
	if _, ok := p.(ModelLister); ok {
		r.listed = append(r.listed, p)
	}
}

// RegisterImages adds image routes.
func (r *Registry) RegisterImages(g ImageGenerator, models map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for alias, upstream := range models {
		if upstream == "" {
			upstream = alias
		}
		r.images[alias] = append(r.images[alias], ImageRoute{Generator: g, Upstream: upstream})
	}
}

func (r *Registry) addChatLocked(p Provider, alias, upstream string) {
	if upstream == "" {
		upstream = alias
	}
	for _, existing := range r.chat[alias] {
		if existing.Provider.Name() == p.Name() {
			return
		}
	}
	r.chat[alias] = append(r.chat[alias], Route{Provider: p, Upstream: upstream})
}

// Discover queries every registered ModelLister and adds the models it
// reports as pass-through routes. Failures are logged and skipped so that
// one unreachable upstream does not block startup.
func (r *Registry) Discover(ctx context.Context) error {
	r.mu.RLock()
	listed := append([]Provider(nil), r.listed...)
	r.mu.RUnlock()

	var failed int
	for _, p := range listed {
		models, err := p.(ModelLister).ListModels(ctx)
		if err != nil {
			failed++
			slog.Warn("model discovery failed", "provider", p.Name(), "error", err)
			continue
		}
		r.mu.Lock()
		for _, m := range models {
			r.addChatLocked(p, m.ID, m.ID)
		}
		r.mu.Unlock()
		debug.Log("providers", "models discovered", "provider", p.Name(), "count", len(models))
	}
	if failed > 0 && failed == len(listed) {
		return fmt.Errorf("model discovery failed for all %d providers", failed)
	}
	return nil
}

// Resolve returns the route for a chat model alias.
func (r *Registry) Resolve(model string) (Route, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	routes := r.chat[model]
	if len(routes) == 0 {
		return Route{}, false
	}
	return routes[0], true
}

// ResolveImage returns the route for an image model alias.
func (r *Registry) ResolveImage(model string) (ImageRoute, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	routes := r.images[model]
	if len(routes) == 0 {
		return ImageRoute{}, false
	}
	return routes[0], true
}

// Models returns every chat alias with its sorted owner names, sorted by
// alias. Image models are not included.
func (r *Registry) Models() []ModelEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ModelEntry, 0, len(r.chat))
	for alias, routes := range r.chat {
		owners := make([]string, 0, len(routes))
		for _, rt := range routes {
			owners = append(owners, rt.Provider.Name())
		}
		sort.Strings(owners)
		out = append(out, ModelEntry{ID: alias, Owners: owners})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Routes returns a copy of the chat routing table.
func (r *Registry) Routes() map[string][]Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]Route, len(r.chat))
	for alias, routes := range r.chat {
		out[alias] = append([]Route(nil), routes...)
	}
	return out
}
