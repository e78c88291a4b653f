package bwrep

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/klauspost/compress/zlib"
)

// zlibBomb compresses size zero bytes, producing a tiny input with an
// extreme expansion ratio.
func zlibBomb(t *testing.T, size int) []byte {
	t.Helper()
	return zlibBytes(t, make([]byte, size))
}

func readAllZlib(t *testing.T, bomb []byte, cfg DecompressionConfig) ([]byte, error) {
	t.Helper()
	zr, err := zlib.NewReader(bytes.NewReader(bomb))
	if err != nil {
		t.Fatalf("zlib.NewReader: %v", err)
	}
	defer zr.Close()
	return io.ReadAll(NewSafeReader(zr, cfg, int64(len(bomb))))
}

func TestSafeReaderZlibBombSize(t *testing.T) {
	bomb := zlibBomb(t, 1<<20)
	_, err := readAllZlib(t, bomb, DecompressionConfig{
		MaxDecompressedSize: 1000 << 10, // slightly less than 1 MiB
		MaxCompressionRatio: math.MaxFloat64,
	})
	if !errors.Is(err, ErrSizeLimitExceeded) {
		t.Fatalf("err = %v, want ErrSizeLimitExceeded", err)
	}
}

func TestSafeReaderZlibBombRatio(t *testing.T) {
	bomb := zlibBomb(t, 1<<20)
	_, err := readAllZlib(t, bomb, DecompressionConfig{
		MaxCompressionRatio: 100,
	})
	if !errors.Is(err, ErrCompressionRatioExceeded) {
		t.Fatalf("err = %v, want ErrCompressionRatioExceeded", err)
	}
}

func TestSafeReaderImplodeBombSize(t *testing.T) {
	bomb := implodeBytes(make([]byte, 64<<10))
	sr := NewSafeReader(newExplodeReader(bytes.NewReader(bomb)), DecompressionConfig{
		MaxDecompressedSize: 32 << 10,
		MaxCompressionRatio: math.MaxFloat64,
	}, int64(len(bomb)))
	out, err := io.ReadAll(sr)
	if !errors.Is(err, ErrSizeLimitExceeded) {
		t.Fatalf("err = %v, want ErrSizeLimitExceeded", err)
	}
	// Never emits more than the cap.
	if len(out) > 32<<10 {
		t.Errorf("emitted %d bytes past the cap", len(out))
	}
}

// An output that exactly fits the cap is not an error: the one-byte probe
// finds nothing past it.
func TestSafeReaderExactFit(t *testing.T) {
	data := bytes.Repeat([]byte{0x5a}, 100)
	sr := NewSafeReader(bytes.NewReader(data), DecompressionConfig{
		MaxDecompressedSize: 100,
		MaxCompressionRatio: math.MaxFloat64,
	}, -1)
	out, err := io.ReadAll(sr)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("out = %d bytes", len(out))
	}
}

// With an unknown input size the ratio limit is not enforced.
func TestSafeReaderUnknownInputSize(t *testing.T) {
	bomb := zlibBomb(t, 1<<20)
	zr, err := zlib.NewReader(bytes.NewReader(bomb))
	if err != nil {
		t.Fatalf("zlib.NewReader: %v", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(NewSafeReader(zr, DecompressionConfig{MaxCompressionRatio: 2}, -1))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(out) != 1<<20 {
		t.Errorf("len(out) = %d", len(out))
	}
}

func TestSafeReaderTimeout(t *testing.T) {
	sr := NewSafeReader(bytes.NewReader(make([]byte, 1<<16)), DecompressionConfig{
		MaxDecompressionTime: time.Nanosecond,
		MaxCompressionRatio:  math.MaxFloat64,
	}, -1)
	// The timer starts on the first read, so that one succeeds.
	buf := make([]byte, 16)
	if _, err := sr.Read(buf); err != nil {
		t.Fatalf("first read: %v", err)
	}
	time.Sleep(time.Millisecond)
	if _, err := sr.Read(buf); !errors.Is(err, ErrDecompressionTimeout) {
		t.Fatalf("second read err = %v, want ErrDecompressionTimeout", err)
	}
}

func TestSafeReaderNegativeTimeDisables(t *testing.T) {
	sr := NewSafeReader(bytes.NewReader(make([]byte, 1<<16)), DecompressionConfig{
		MaxDecompressionTime: -1,
		MaxCompressionRatio:  math.MaxFloat64,
	}, -1)
	if _, err := io.ReadAll(sr); err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
}

func TestDecodeChunkModernStored(t *testing.T) {
	cfg := DecompressionConfig{}

	// Chunks of 4 bytes or fewer pass through untouched even when they start
	// with the zlib signature byte.
	tiny := []byte{zlibMarker, 0x9c, 0x01, 0x02}
	got, err := decodeChunk(tiny, FormatModern121, cfg)
	if err != nil {
		t.Fatalf("decodeChunk: %v", err)
	}
	if !bytes.Equal(got, tiny) {
		t.Errorf("tiny chunk = %v", got)
	}

	// Larger chunks without the signature are stored too.
	stored := []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05}
	got, err = decodeChunk(stored, FormatModern, cfg)
	if err != nil {
		t.Fatalf("decodeChunk: %v", err)
	}
	if !bytes.Equal(got, stored) {
		t.Errorf("stored chunk = %v", got)
	}
}

func TestDecodeChunkIdempotent(t *testing.T) {
	payload := bytes.Repeat([]byte("replay data "), 100)
	cfg := DecompressionConfig{MaxCompressionRatio: math.MaxFloat64}

	for name, tc := range map[string]struct {
		chunk  []byte
		format ReplayFormat
	}{
		"zlib":    {zlibBytes(t, payload), FormatModern121},
		"implode": {implodeBytes(payload), FormatLegacy},
	} {
		first, err := decodeChunk(tc.chunk, tc.format, cfg)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		second, err := decodeChunk(tc.chunk, tc.format, cfg)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !bytes.Equal(first, payload) {
			t.Errorf("%s: decoded %d bytes, want %d", name, len(first), len(payload))
		}
		if !bytes.Equal(first, second) {
			t.Errorf("%s: decoding twice differs", name)
		}
	}
}

func TestDecodeChunkCorruptZlib(t *testing.T) {
	chunk := []byte{zlibMarker, 0x00, 0xde, 0xad, 0xbe, 0xef}
	if _, err := decodeChunk(chunk, FormatModern121, DecompressionConfig{}); err == nil {
		t.Fatal("corrupt zlib chunk decoded without error")
	}
}

func TestReadSectionBodyMultiChunk(t *testing.T) {
	a := bytes.Repeat([]byte{1}, 100)
	b := bytes.Repeat([]byte{2}, 50)
	sec := chunkedSection(zlibBytes(t, a), zlibBytes(t, b))

	got, err := readSectionBody(bytes.NewReader(sec), FormatModern121, DecompressionConfig{}, 0)
	if err != nil {
		t.Fatalf("readSectionBody: %v", err)
	}
	if !bytes.Equal(got, append(append([]byte(nil), a...), b...)) {
		t.Errorf("concatenation mismatch, got %d bytes", len(got))
	}
}

func TestReadSectionBodyTruncatedChunk(t *testing.T) {
	sec := chunkedSection(zlibBytes(t, []byte("data")))
	_, err := readSectionBody(bytes.NewReader(sec[:len(sec)-2]), FormatModern121, DecompressionConfig{}, 0)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("err = %v, want ErrUnexpectedEOF", err)
	}
}
