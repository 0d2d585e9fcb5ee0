package admission

import "sync"

// FlagEnableBulkhead gates bulkhead enforcement. When the flag is off the
// manager runs tasks directly, recording nothing.
const FlagEnableBulkhead = "enableBulkhead"

// FlagProvider answers runtime feature-flag lookups. Implementations must be
// safe for concurrent use.
type FlagProvider interface {
	Enabled(name string) bool
}

// alwaysOn is the provider used when none is configured.
type alwaysOn struct{}

func (alwaysOn) Enabled(string) bool { return true }

// StaticFlags is an in-memory FlagProvider with mutable flag values.
type StaticFlags struct {
	mu    sync.RWMutex
	flags map[string]bool
}

// NewStaticFlags creates a provider seeded with the given flags.
func NewStaticFlags(flags map[string]bool) *StaticFlags {
	copied := make(map[string]bool, len(flags))
	for k, v := range flags {
		copied[k] = v
	}
	return &StaticFlags{flags: copied}
}

// Enabled reports whether the named flag is set. Unknown flags are off.
func (s *StaticFlags) Enabled(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags[name]
}

// Set updates a flag value.
func (s *StaticFlags) Set(name string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flags == nil {
		s.flags = make(map[string]bool)
	}
	s.flags[name] = enabled
}
