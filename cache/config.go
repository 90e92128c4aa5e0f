package cache

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config exposes the tunable behavior of the query cache.
type Config struct {
	// GCTTL is how long an entry with zero subscribers survives before it
	// is evicted. Resubscribing within the window cancels eviction and
	// serves the cached payload without a network call.
	GCTTL time.Duration

	// FreshFor bounds how long a successful payload satisfies a new
	// subscription without a refetch. Zero means entries stay fresh until
	// explicitly invalidated.
	FreshFor time.Duration

	// MaxInlineKeyLength is the longest serialized parameter segment kept
	// verbatim in a query key. Longer segments are collapsed to a digest.
	MaxInlineKeyLength int
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return Config{
		GCTTL:              5 * time.Minute,
		FreshFor:           0,
		MaxInlineKeyLength: 128,
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.GCTTL, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.FreshFor, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxInlineKeyLength, validation.Min(16)),
	)
}
