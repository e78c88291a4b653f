package bwrep

type parseConfig struct {
	decompression DecompressionConfig
}

// Option customizes Parse behavior.
type Option func(*parseConfig)

// WithDecompressionConfig sets the limits applied to every section
// decompression, both the eager header decode and later on-demand
// retrievals.
func WithDecompressionConfig(c DecompressionConfig) Option {
	return func(p *parseConfig) { p.decompression = c }
}
