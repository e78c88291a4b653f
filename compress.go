package bwrep

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zlib"
)

// zlibMarker is the first byte of a zlib stream with a 32 KiB window, and
// doubles as the compression marker modern replays carry at offset 28.
const zlibMarker = 0x78

// SafeReader wraps a decompression stream and enforces three independent
// limits on it: total output size, output/input ratio, and wall-clock time.
// Any Read may fail with ErrSizeLimitExceeded, ErrCompressionRatioExceeded
// or ErrDecompressionTimeout even when the wrapped stream itself would have
// succeeded. The timer starts lazily on the first Read.
type SafeReader struct {
	inner    *io.LimitedReader
	maxSize  uint64
	maxRatio float64
	maxTime  time.Duration
	// inputSize is the compressed input size in bytes, or negative when
	// unknown, in which case the ratio limit is not enforced.
	inputSize int64

	start time.Time
	read  uint64
}

// NewSafeReader wraps r, which should produce decompressed bytes, applying
// cfg. inputSize is the size of the compressed input in bytes; pass a
// negative value if unknown.
func NewSafeReader(r io.Reader, cfg DecompressionConfig, inputSize int64) *SafeReader {
	cfg = cfg.withDefaults()
	return &SafeReader{
		inner:     &io.LimitedReader{R: r, N: int64(cfg.MaxDecompressedSize)},
		maxSize:   cfg.MaxDecompressedSize,
		maxRatio:  cfg.MaxCompressionRatio,
		maxTime:   cfg.MaxDecompressionTime,
		inputSize: inputSize,
	}
}

func (s *SafeReader) Read(p []byte) (int, error) {
	if s.maxTime > 0 {
		if s.start.IsZero() {
			s.start = time.Now()
		} else if time.Since(s.start) > s.maxTime {
			return 0, ErrDecompressionTimeout
		}
	}

	n, err := s.inner.Read(p)
	s.read += uint64(n)

	if n == 0 && s.read == s.maxSize {
		// EOF exactly at the cap: either the stream genuinely ended here or
		// the LimitedReader cut it off. Probe one byte past the cap to tell
		// the two apart.
		s.inner.N = 1
		var probe [1]byte
		if pn, _ := s.inner.Read(probe[:]); pn == 1 {
			return 0, ErrSizeLimitExceeded
		}
	}

	if s.inputSize > 0 {
		if ratio := float64(s.read) / float64(s.inputSize); ratio > s.maxRatio {
			return 0, ErrCompressionRatioExceeded
		}
	}

	return n, err
}

// readSectionBody decodes one chunked section at the current position of r:
// an 8-byte section header (checksum, chunk count) followed by chunkCount
// chunks, each a 4-byte size and that many raw bytes. Legacy chunks are
// always imploded; modern chunks are zlib when they look like it and stored
// otherwise. Decoded chunks are concatenated in order.
func readSectionBody(r io.Reader, format ReplayFormat, cfg DecompressionConfig, sizeHint int) ([]byte, error) {
	_, chunkCount, err := readChunkedHeader(r)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, sizeHint)
	for i := uint32(0); i < chunkCount; i++ {
		var size uint32
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, err
		}
		// The size is attacker-controlled; read through a LimitReader rather
		// than preallocating it.
		chunk, err := io.ReadAll(io.LimitReader(r, int64(size)))
		if err != nil {
			return nil, err
		}
		if uint32(len(chunk)) != size {
			return nil, io.ErrUnexpectedEOF
		}

		decoded, err := decodeChunk(chunk, format, cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded...)
	}
	return out, nil
}

// decodeChunk decompresses a single chunk according to the container format
// and the chunk's own signature byte.
func decodeChunk(chunk []byte, format ReplayFormat, cfg DecompressionConfig) ([]byte, error) {
	switch format {
	case FormatLegacy:
		sr := NewSafeReader(newExplodeReader(bytes.NewReader(chunk)), cfg, int64(len(chunk)))
		out, err := io.ReadAll(sr)
		if err != nil {
			return nil, err
		}
		return out, nil

	default:
		// Tiny chunks and chunks without the zlib signature are stored.
		if len(chunk) <= 4 || chunk[0] != zlibMarker {
			return chunk, nil
		}
		zr, err := zlib.NewReader(bytes.NewReader(chunk))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		defer zr.Close()
		out, err := io.ReadAll(NewSafeReader(zr, cfg, int64(len(chunk))))
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}

// readChunkedHeader reads the 8-byte header every chunked section starts
// with.
func readChunkedHeader(r io.Reader) (checksum, chunkCount uint32, err error) {
	var buf [8]byte
	if _, err = io.ReadFull(r, buf[:]); err != nil {
		return 0, 0, err
	}
	checksum = binary.LittleEndian.Uint32(buf[0:4])
	chunkCount = binary.LittleEndian.Uint32(buf[4:8])
	return checksum, chunkCount, nil
}
