package config

import "fmt"

// Validate checks the configuration for invalid values (fail-fast).
// Errors wrap the package sentinel errors for errors.Is checks.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGoogleAI, ProviderOllama:
	default:
		return fmt.Errorf("%w: %q (must be %q or %q)",
			ErrInvalidProvider, c.Provider, ProviderGoogleAI, ProviderOllama)
	}

	if c.EmbedderDim <= 0 || c.EmbedderDim > 8192 {
		return fmt.Errorf("%w: %d (must be in 1..8192)", ErrInvalidDimension, c.EmbedderDim)
	}

	if c.CacheThreshold <= 0 || c.CacheThreshold > 1 {
		return fmt.Errorf("%w: %g (must be in (0, 1])", ErrInvalidThreshold, c.CacheThreshold)
	}

	if c.TopK < 1 || c.TopK > 50 {
		return fmt.Errorf("%w: %d (must be in 1..50)", ErrInvalidTopK, c.TopK)
	}

	if c.SourceTimeout <= 0 {
		return fmt.Errorf("%w: source_timeout %s", ErrInvalidTimeout, c.SourceTimeout)
	}
	if c.StackBackoff <= 0 {
		return fmt.Errorf("%w: stack_backoff %s", ErrInvalidTimeout, c.StackBackoff)
	}

	if c.DataDir == "" {
		return ErrMissingDataDir
	}

	return nil
}
