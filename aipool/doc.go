// Package aipool pools AI provider clients. A ClientPool keeps one resource
// pool per provider (claude, openai, deepseek by default), re-validates
// clients on acquisition, and evicts idle ones. Each provider sits behind
// its own circuit breaker so a failing provider is rejected fast instead of
// holding acquirers for the full timeout.
//
// Leases are identified by an opaque connection ID:
//
//	cp := aipool.New(factory, aipool.DefaultConfig())
//
//	lease, err := cp.AcquireClient(ctx, aipool.ProviderClaude)
//	if err != nil {
//	    return err
//	}
//	defer cp.ReleaseClient(lease.ConnectionID)
//	resp, err := lease.Client.(*myClient).Complete(ctx, prompt)
//
// A client known to be broken should be ended with Discard instead of
// ReleaseClient; the pool destroys it and replaces it as needed.
package aipool
