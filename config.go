package flowpager

import "fmt"

// Config holds the pager options. Field tags allow embedding it in koanf
// backed application configs.
type Config struct {
	// PageSize number of items requested per load.
	PageSize int `koanf:"page_size"`
	// EnablePlaceholders whether unloaded boundaries render as marker entries.
	EnablePlaceholders bool `koanf:"enable_placeholders"`
	// MaxRetainedItems memory bound of the window. Must be at least twice
	// PageSize and at least PageSize+2*PrefetchDistance, or NoLimit.
	MaxRetainedItems int `koanf:"max_retained_items"`
	// PrefetchDistance how close to an edge the anchor must be to trigger a
	// load in that direction.
	PrefetchDistance int `koanf:"prefetch_distance"`
}

// DefaultConfig returns the configuration used when nothing else is set.
func DefaultConfig() Config {
	return Config{
		PageSize:           DefaultPageSize,
		EnablePlaceholders: true,
		MaxRetainedItems:   DefaultMaxRetainedItems,
		PrefetchDistance:   DefaultPageSize,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive")
	}
	if c.MaxRetainedItems != NoLimit && c.MaxRetainedItems < 2*c.PageSize {
		return fmt.Errorf("max_retained_items must be at least 2*page_size (%d), got %d", 2*c.PageSize, c.MaxRetainedItems)
	}
	if c.PrefetchDistance < 0 {
		return fmt.Errorf("prefetch_distance must be non-negative")
	}
	if minItems := c.PageSize + 2*c.PrefetchDistance; c.MaxRetainedItems != NoLimit && c.MaxRetainedItems < minItems {
		return fmt.Errorf("max_retained_items must be at least page_size+2*prefetch_distance (%d), got %d", minItems, c.MaxRetainedItems)
	}

	return nil
}
