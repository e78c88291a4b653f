package bwrep

import (
	"fmt"
	"io"
)

// Legacy replays compress their chunks with the PKWARE Data Compression
// Library "implode" scheme: an LZ77 variant over a 1-4 KiB sliding window
// with fixed, canonical Huffman tables for literals, lengths and distances.
// This file is a decoder for it, exposed as a streaming io.Reader so it can
// sit under a SafeReader like any other decompressor.

const (
	explodeMaxBits = 13   // longest Huffman code used by the format
	explodeWinSize = 4096 // largest window the format supports
	explodeEndLen  = 519  // length symbol value marking end of stream
)

type explodeHuffman struct {
	count  []int16 // count[n] = number of codes with bit length n
	symbol []int16 // symbols ordered canonically
}

// buildExplodeHuffman expands a compact table representation (high nibble:
// repeat count minus one, low nibble: bit length) into a canonical decoding
// table. The tables are fixed by the format, so this never fails.
func buildExplodeHuffman(rep []byte) explodeHuffman {
	var lengths []int
	for _, b := range rep {
		n := int(b>>4) + 1
		for ; n > 0; n-- {
			lengths = append(lengths, int(b&15))
		}
	}

	count := make([]int16, explodeMaxBits+1)
	for _, l := range lengths {
		count[l]++
	}

	offs := make([]int16, explodeMaxBits+1)
	for l := 1; l < explodeMaxBits; l++ {
		offs[l+1] = offs[l] + count[l]
	}
	symbol := make([]int16, len(lengths))
	for sym, l := range lengths {
		if l != 0 {
			symbol[offs[l]] = int16(sym)
			offs[l]++
		}
	}
	return explodeHuffman{count: count, symbol: symbol}
}

var (
	explodeLitCode = buildExplodeHuffman([]byte{
		11, 124, 8, 7, 28, 7, 188, 13, 76, 4, 10, 8, 12, 10, 12, 10, 8, 23, 8,
		9, 7, 6, 7, 8, 7, 6, 55, 8, 23, 24, 12, 11, 7, 9, 11, 12, 6, 7, 22, 5,
		7, 24, 6, 11, 9, 6, 7, 22, 7, 11, 38, 7, 9, 8, 25, 11, 8, 11, 9, 12,
		8, 12, 5, 38, 5, 38, 5, 11, 7, 5, 6, 21, 6, 10, 53, 8, 7, 24, 10, 27,
		44, 253, 253, 253, 252, 252, 252, 13, 12, 45, 12, 45, 12, 61, 12, 45,
		44, 173,
	})
	explodeLenCode  = buildExplodeHuffman([]byte{2, 35, 36, 53, 38, 23})
	explodeDistCode = buildExplodeHuffman([]byte{2, 20, 53, 230, 247, 151, 248})

	explodeLenBase  = [16]int{3, 2, 4, 5, 6, 7, 8, 9, 10, 12, 16, 24, 40, 72, 136, 264}
	explodeLenExtra = [16]int{0, 0, 0, 0, 0, 0, 0, 0, 1, 2, 3, 4, 5, 6, 7, 8}
)

type explodeReader struct {
	in io.Reader

	bitbuf int
	bitcnt int

	started bool
	coded   bool // literals are Huffman coded rather than stored
	dict    int  // log2(window size) - 6, always 4..6

	win  [explodeWinSize]byte
	wpos uint32 // total bytes produced so far

	pend    []byte
	pendOff int

	done bool
	err  error
}

func newExplodeReader(r io.Reader) *explodeReader {
	return &explodeReader{in: r}
}

func (e *explodeReader) Read(p []byte) (int, error) {
	for e.pendOff == len(e.pend) {
		if e.err != nil {
			return 0, e.err
		}
		if e.done {
			return 0, io.EOF
		}
		e.pend = e.pend[:0]
		e.pendOff = 0
		if !e.started {
			e.started = true
			if err := e.readStreamHeader(); err != nil {
				e.err = err
				return 0, err
			}
		}
		if err := e.step(); err != nil {
			e.err = err
			return 0, err
		}
	}
	n := copy(p, e.pend[e.pendOff:])
	e.pendOff += n
	return n, nil
}

// readStreamHeader reads the two header bytes: literal mode and dictionary
// size.
func (e *explodeReader) readStreamHeader() error {
	lit, err := e.bits(8)
	if err != nil {
		return err
	}
	if lit > 1 {
		return fmt.Errorf("%w: bad implode literal mode %d", ErrInvalidPayload, lit)
	}
	dict, err := e.bits(8)
	if err != nil {
		return err
	}
	if dict < 4 || dict > 6 {
		return fmt.Errorf("%w: bad implode dictionary size %d", ErrInvalidPayload, dict)
	}
	e.coded = lit == 1
	e.dict = dict
	return nil
}

// step decodes one symbol: a literal byte, a back-reference of up to 518
// bytes, or the end-of-stream marker.
func (e *explodeReader) step() error {
	flag, err := e.bits(1)
	if err != nil {
		return err
	}
	if flag == 0 {
		var sym int
		if e.coded {
			sym, err = e.decode(&explodeLitCode)
		} else {
			sym, err = e.bits(8)
		}
		if err != nil {
			return err
		}
		e.emit(byte(sym))
		return nil
	}

	sym, err := e.decode(&explodeLenCode)
	if err != nil {
		return err
	}
	length := explodeLenBase[sym]
	if explodeLenExtra[sym] > 0 {
		x, err := e.bits(explodeLenExtra[sym])
		if err != nil {
			return err
		}
		length += x
	}
	if length == explodeEndLen {
		e.done = true
		return nil
	}

	lowBits := e.dict
	if length == 2 {
		lowBits = 2
	}
	sym, err = e.decode(&explodeDistCode)
	if err != nil {
		return err
	}
	low, err := e.bits(lowBits)
	if err != nil {
		return err
	}
	dist := sym<<lowBits + low + 1
	if uint32(dist) > e.wpos {
		return fmt.Errorf("%w: implode distance too far back", ErrInvalidPayload)
	}

	for i := 0; i < length; i++ {
		e.emit(e.win[(e.wpos-uint32(dist))&(explodeWinSize-1)])
	}
	return nil
}

func (e *explodeReader) emit(b byte) {
	e.win[e.wpos&(explodeWinSize-1)] = b
	e.wpos++
	e.pend = append(e.pend, b)
}

func (e *explodeReader) readByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(e.in, b[:]); err != nil {
		return 0, fmt.Errorf("%w: truncated imploded stream", ErrInvalidPayload)
	}
	return b[0], nil
}

// bits returns the next need bits from the stream, least significant first.
func (e *explodeReader) bits(need int) (int, error) {
	val := e.bitbuf
	for e.bitcnt < need {
		b, err := e.readByte()
		if err != nil {
			return 0, err
		}
		val |= int(b) << e.bitcnt
		e.bitcnt += 8
	}
	e.bitbuf = val >> need
	e.bitcnt -= need
	return val & (1<<need - 1), nil
}

// decode reads one canonical Huffman code from the stream. Code bits are
// stored inverted, shortest codes first.
func (e *explodeReader) decode(h *explodeHuffman) (int, error) {
	bitbuf := e.bitbuf
	left := e.bitcnt
	code, first, index := 0, 0, 0
	length := 1
	next := 1
	for {
		for left > 0 {
			left--
			code |= bitbuf & 1 ^ 1
			bitbuf >>= 1
			count := int(h.count[next])
			next++
			if code-first < count {
				e.bitbuf = bitbuf
				e.bitcnt = (e.bitcnt - length) & 7
				return int(h.symbol[index+code-first]), nil
			}
			index += count
			first += count
			first <<= 1
			code <<= 1
			length++
		}
		left = explodeMaxBits + 1 - length
		if left == 0 {
			break
		}
		b, err := e.readByte()
		if err != nil {
			return 0, err
		}
		bitbuf = int(b)
		e.bitcnt += 8
		if left > 8 {
			left = 8
		}
	}
	return 0, fmt.Errorf("%w: invalid implode code", ErrInvalidPayload)
}
