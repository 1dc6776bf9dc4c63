package oauth

import (
	"sort"

	"github.com/bouabca/hawiyat-site-sub000/pkg/httpclient"
)

// Registry holds the providers enabled for this deployment.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a provider under its id.
func (r *Registry) Register(p Provider) {
	r.providers[p.ID()] = p
}

func (r *Registry) Get(id string) (Provider, bool) {
	p, ok := r.providers[id]
	return p, ok
}

// IDs returns the registered provider ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Settings maps provider definitions to their credentials.
type Settings struct {
	Google    Credentials
	GitHub    Credentials
	Bitbucket Credentials
}

// NewDefaultRegistry registers each built-in provider whose credentials
// are configured.
func NewDefaultRegistry(s Settings, client *httpclient.CircuitBreakerClient) *Registry {
	r := NewRegistry()
	for _, c := range []struct {
		def   Definition
		creds Credentials
	}{
		{Google(), s.Google},
		{GitHub(), s.GitHub},
		{Bitbucket(), s.Bitbucket},
	} {
		if c.creds.Configured() {
			r.Register(New(c.def, c.creds, client))
		}
	}
	return r
}
