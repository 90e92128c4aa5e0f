package di

import (
	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/querycache"
)

// Container provides dependency injection for the query cache components.
// It manages singleton instances of the client and key serializer so every
// consumer in an application shares one cache, while tests can build a
// fresh container per test for deterministic state.
type Container struct {
	client        *querycache.Client
	keySerializer cache.KeySerializer
	config        cache.Config
}

// NewContainer creates a new DI container with the provided configuration.
// It initializes the default key serializer and the cache client on top of
// it.
func NewContainer(config cache.Config) (*Container, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	keySerializer := cache.NewKeySerializerWithLimit(config.MaxInlineKeyLength)
	client, err := querycache.NewClientWithSerializer(config, keySerializer)
	if err != nil {
		return nil, err
	}

	return &Container{
		client:        client,
		keySerializer: keySerializer,
		config:        config,
	}, nil
}

// NewContainerWithDefaults creates a new DI container using default
// configuration. This is a convenience constructor for typical use cases
// where custom configuration is not required.
func NewContainerWithDefaults() (*Container, error) {
	return NewContainer(cache.DefaultConfig())
}

// Client returns the singleton cache client instance.
func (c *Container) Client() *querycache.Client {
	return c.client
}

// KeySerializer returns the singleton key serializer instance. This allows
// access to the serializer for custom key construction.
func (c *Container) KeySerializer() cache.KeySerializer {
	return c.keySerializer
}

// Config returns a copy of the cache configuration used by this container.
// This is useful for debugging and monitoring purposes.
func (c *Container) Config() cache.Config {
	return c.config
}

// Teardown evicts all cached state and cancels timers. Call it on app
// shutdown or between tests that share a container.
func (c *Container) Teardown() {
	c.client.Reset()
}
