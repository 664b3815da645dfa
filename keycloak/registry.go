package keycloak

// Registry is the process-wide mapping from machine client secret to the
// client registered for it. It is built once at startup and read-only
// thereafter, so lookups need no locking.
type Registry struct {
	clients map[string]*Client
}

// NewRegistry copies the given mapping into an immutable registry.
func NewRegistry(clients map[string]*Client) *Registry {
	dup := make(map[string]*Client, len(clients))
	for secret, c := range clients {
		dup[secret] = c
	}
	return &Registry{clients: dup}
}

// Lookup returns the client registered for the secret, if any.
func (r *Registry) Lookup(secret string) (*Client, bool) {
	c, ok := r.clients[secret]
	return c, ok
}

// Len returns the number of registered machine clients.
func (r *Registry) Len() int { return len(r.clients) }
