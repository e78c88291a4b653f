package bwrep

import "errors"

var (
	// ErrMalformedHeader indicates the file is not a valid replay or its
	// mandatory header structure could not be parsed. Construction aborts
	// entirely on this error.
	ErrMalformedHeader = errors.New("bwrep: malformed header")

	// ErrDuplicateSection indicates the container declares the same section
	// tag twice. The offset table cannot hold two offsets for one identity,
	// so indexing fails.
	ErrDuplicateSection = errors.New("bwrep: duplicate section")

	// ErrInvalidPayload indicates a section body that cannot be decoded
	// (corrupt compressed data, truncated record, unterminated string).
	ErrInvalidPayload = errors.New("bwrep: invalid payload")

	// ErrSizeLimitExceeded indicates decompressed output hit
	// DecompressionConfig.MaxDecompressedSize.
	ErrSizeLimitExceeded = errors.New("bwrep: decompressed size limit exceeded")

	// ErrCompressionRatioExceeded indicates the decompressed/compressed ratio
	// passed DecompressionConfig.MaxCompressionRatio.
	ErrCompressionRatioExceeded = errors.New("bwrep: compression ratio too high")

	// ErrDecompressionTimeout indicates decompression ran longer than
	// DecompressionConfig.MaxDecompressionTime.
	ErrDecompressionTimeout = errors.New("bwrep: decompression timeout")
)
