package aipool

import "context"

// Default provider names.
const (
	ProviderClaude   = "claude"
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
)

// Client is a pooled AI provider client.
type Client interface {
	// Provider returns the provider this client talks to.
	Provider() string

	// Ping verifies the client is still usable.
	Ping(ctx context.Context) error

	// Close releases the client's underlying connection.
	Close() error
}

// ClientFactory builds provider clients on demand.
type ClientFactory interface {
	NewClient(ctx context.Context, provider string) (Client, error)
}

// ClientFactoryFunc adapts a function to the ClientFactory interface.
type ClientFactoryFunc func(ctx context.Context, provider string) (Client, error)

func (f ClientFactoryFunc) NewClient(ctx context.Context, provider string) (Client, error) {
	return f(ctx, provider)
}
