package bwrep

import "time"

// DecompressionConfig bounds every decompression performed while reading a
// replay, so that a crafted file cannot expand into unbounded memory or CPU
// time. The zero value of any field means "use the default"; to disable the
// time limit set MaxDecompressionTime to a negative value, and to disable
// the ratio check set MaxCompressionRatio to a very large value such as
// math.MaxFloat64.
type DecompressionConfig struct {
	// MaxDecompressedSize is the maximum number of bytes a single
	// decompression may produce. Default: 100 MiB.
	MaxDecompressedSize uint64
	// MaxCompressionRatio is the maximum decompressed/compressed ratio
	// allowed when the compressed input size is known. Default: 500.
	MaxCompressionRatio float64
	// MaxDecompressionTime is the maximum wall-clock time a single
	// decompression may take. Default: 30 seconds. Negative disables.
	MaxDecompressionTime time.Duration
}

func defaultDecompressionConfig() DecompressionConfig {
	return DecompressionConfig{
		MaxDecompressedSize:  100 << 20, // 100 MiB
		MaxCompressionRatio:  500,
		MaxDecompressionTime: 30 * time.Second,
	}
}

func (c DecompressionConfig) withDefaults() DecompressionConfig {
	d := defaultDecompressionConfig()
	if c.MaxDecompressedSize == 0 {
		c.MaxDecompressedSize = d.MaxDecompressedSize
	}
	if c.MaxCompressionRatio == 0 {
		c.MaxCompressionRatio = d.MaxCompressionRatio
	}
	if c.MaxDecompressionTime == 0 {
		c.MaxDecompressionTime = d.MaxDecompressionTime
	}
	return c
}
