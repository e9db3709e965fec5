package fusion

import "sync"

// ResolverSet is a static in-memory whitelist of resolver identities. It
// satisfies ResolverAccess for deployments that restrict who may fill or
// cancel orders; an empty set denies everyone, a nil engine whitelist allows
// everyone.
type ResolverSet struct {
	mu      sync.RWMutex
	allowed map[[32]byte]struct{}
}

// NewResolverSet builds a set from the supplied addresses.
func NewResolverSet(addrs ...[32]byte) *ResolverSet {
	set := &ResolverSet{allowed: make(map[[32]byte]struct{}, len(addrs))}
	for _, addr := range addrs {
		set.allowed[addr] = struct{}{}
	}
	return set
}

// Register adds a resolver to the set.
func (s *ResolverSet) Register(addr [32]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowed[addr] = struct{}{}
}

// Deregister removes a resolver from the set.
func (s *ResolverSet) Deregister(addr [32]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.allowed, addr)
}

// Allowed implements ResolverAccess.
func (s *ResolverSet) Allowed(addr [32]byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.allowed[addr]
	return ok
}
