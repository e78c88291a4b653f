package bwrep

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Replay is a parsed replay file. It owns the underlying stream: the header
// is decoded eagerly during Parse, every other section lazily through
// Section, which seeks the stream. Replay performs no internal locking;
// concurrent use must be serialized by the caller.
type Replay struct {
	in     io.ReadSeeker
	file   *os.File // set when opened via ParseFile
	format ReplayFormat
	cfg    DecompressionConfig

	sections map[SectionID]int64
	header   *Header
}

// Parse reads a replay from in, which can be anything seekable such as an
// *os.File or a *bytes.Reader. The stream is walked once: the format is
// detected, the header section is decoded and parsed, and the offset of
// every further section is recorded without decoding its body.
//
// Parse returns ErrMalformedHeader if in is not a valid replay,
// ErrDuplicateSection if the container declares a tag twice, and a
// decompression limit error if decoding the header section trips the
// configured limits.
func Parse(in io.ReadSeeker, opts ...Option) (*Replay, error) {
	cfg := parseConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	format, err := detectFormat(in)
	if err != nil {
		return nil, err
	}

	r := &Replay{
		in:       in,
		format:   format,
		cfg:      cfg.decompression,
		sections: make(map[SectionID]int64),
	}
	if err := r.index(); err != nil {
		return nil, err
	}
	return r, nil
}

// ParseFile opens the named file and parses it as a replay. The returned
// Replay must be closed with Close.
func ParseFile(name string, opts ...Option) (*Replay, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	r, err := Parse(f, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.file = f
	return r, nil
}

// Close closes the underlying file if the Replay was opened with ParseFile;
// otherwise it is a no-op.
func (r *Replay) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// Format returns the detected container format.
func (r *Replay) Format() ReplayFormat { return r.format }

// Header returns the parsed replay header. It is never nil on a Replay
// returned by Parse.
func (r *Replay) Header() *Header { return r.header }

// Sections returns the identities found during indexing, in no particular
// order.
func (r *Replay) Sections() []SectionID {
	out := make([]SectionID, 0, len(r.sections))
	for id := range r.sections {
		out = append(out, id)
	}
	return out
}

// detectFormat classifies the stream by the magic bytes at offset 12 and,
// for pre-1.21 replays, the compression marker at offset 28. The stream
// position is left unspecified; callers reset it.
func detectFormat(in io.ReadSeeker) (ReplayFormat, error) {
	// 1.21+ uses `seRS`, everything before it `reRS`.
	if _, err := in.Seek(12, io.SeekStart); err != nil {
		return 0, err
	}
	var magic [4]byte
	if _, err := io.ReadFull(in, magic[:]); err != nil {
		return 0, fmt.Errorf("%w: invalid magic bytes", ErrMalformedHeader)
	}
	if string(magic[:]) == "seRS" {
		return FormatModern121, nil
	}
	if string(magic[:]) != "reRS" {
		return 0, fmt.Errorf("%w: invalid magic bytes", ErrMalformedHeader)
	}

	// A zlib signature byte at offset 28 indicates the 1.18+ compression.
	// Any other value classifies as legacy without further range checks.
	if _, err := in.Seek(12, io.SeekCurrent); err != nil {
		return 0, err
	}
	var marker [1]byte
	if _, err := io.ReadFull(in, marker[:]); err != nil {
		return 0, fmt.Errorf("%w: invalid magic bytes", ErrMalformedHeader)
	}
	if marker[0] == zlibMarker {
		return FormatModern, nil
	}
	return FormatLegacy, nil
}

// index performs the single forward pass over the container: it validates
// the magic section, eagerly decodes and parses the header section, and
// records the byte offset of every further section without decoding it.
// Running off the end of the stream after the header is parsed terminates
// the walk with the sections found so far.
func (r *Replay) index() error {
	if _, err := r.in.Seek(0, io.SeekStart); err != nil {
		return err
	}

	// The magic section must hold a single 4-byte chunk: the magic itself,
	// already validated during detection.
	_, chunkCount, err := readChunkedHeader(r.in)
	if err != nil {
		return fmt.Errorf("%w: truncated magic section", ErrMalformedHeader)
	}
	if chunkCount != 1 {
		return fmt.Errorf("%w: bad magic section chunk count", ErrMalformedHeader)
	}
	var size uint32
	if err := binary.Read(r.in, binary.LittleEndian, &size); err != nil {
		return fmt.Errorf("%w: truncated magic section", ErrMalformedHeader)
	}
	if size != 4 {
		return fmt.Errorf("%w: bad magic section size", ErrMalformedHeader)
	}
	if _, err := r.in.Seek(4, io.SeekCurrent); err != nil {
		return err
	}

	// 1.21+ carries an extra offset hint here that this design does not
	// need.
	if r.format == FormatModern121 {
		if _, err := r.in.Seek(4, io.SeekCurrent); err != nil {
			return err
		}
	}

	if err := r.recordOffset(SectionHeader); err != nil {
		return err
	}
	hdr, err := readSectionBody(r.in, r.format, r.cfg, headerSectionSize)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: truncated header section", ErrMalformedHeader)
		}
		return err
	}
	if r.header, err = parseHeader(hdr); err != nil {
		return err
	}

	// Commands and MapData follow in fixed order, each preceded by a
	// companion size section. Then PlayerNames. Anything from here on may be
	// cut short; end of stream just ends the walk.
	for _, id := range []SectionID{SectionCommands, SectionMapData} {
		if done, err := r.skipChunked(); done || err != nil {
			return err
		}
		if err := r.recordOffset(id); err != nil {
			return err
		}
		if done, err := r.skipChunked(); done || err != nil {
			return err
		}
	}
	if err := r.recordOffset(SectionPlayerNames); err != nil {
		return err
	}
	if done, err := r.skipChunked(); done || err != nil {
		return err
	}

	if r.format == FormatLegacy {
		return nil
	}

	// Modern replays append tagged sections until end of file: a 4-byte tag,
	// a 4-byte size, and that many raw bytes.
	for {
		var tag [4]byte
		if _, err := io.ReadFull(r.in, tag[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return err
		}
		id := SectionForTag(tag)
		if _, ok := r.sections[id]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateSection, id)
		}
		if err := r.recordOffset(id); err != nil {
			return err
		}
		if err := binary.Read(r.in, binary.LittleEndian, &size); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return err
		}
		if _, err := r.in.Seek(int64(size), io.SeekCurrent); err != nil {
			return err
		}
	}
}

// recordOffset stores the current stream position as the offset of id.
func (r *Replay) recordOffset(id SectionID) error {
	off, err := r.in.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	r.sections[id] = off
	return nil
}

// skipChunked skips over a chunked section without decoding it. done is
// true when the stream ended before or inside the section, which terminates
// the indexing walk without error.
func (r *Replay) skipChunked() (done bool, err error) {
	_, chunkCount, err := readChunkedHeader(r.in)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return true, nil
		}
		return false, err
	}
	for i := uint32(0); i < chunkCount; i++ {
		var size uint32
		if err := binary.Read(r.in, binary.LittleEndian, &size); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return true, nil
			}
			return false, err
		}
		if _, err := r.in.Seek(int64(size), io.SeekCurrent); err != nil {
			return false, err
		}
	}
	return false, nil
}

// Section returns the raw, decompressed bytes of the given section, reading
// and decoding it from the stream on demand. It returns nil bytes and a nil
// error when the identity was not found during indexing; errors are only
// returned for sections that exist but fail to decode, including
// decompression limit errors.
func (r *Replay) Section(id SectionID) ([]byte, error) {
	off, ok := r.sections[id]
	if !ok {
		return nil, nil
	}
	if _, err := r.in.Seek(off, io.SeekStart); err != nil {
		return nil, err
	}

	if !id.tagged() {
		hint := 0
		if id == SectionHeader {
			hint = headerSectionSize
		}
		return readSectionBody(r.in, r.format, r.cfg, hint)
	}

	// Tagged sections store raw bytes behind a 4-byte size field.
	var size uint32
	if err := binary.Read(r.in, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(r.in, int64(size)))
	if err != nil {
		return nil, err
	}
	if uint32(len(data)) != size {
		return nil, io.ErrUnexpectedEOF
	}
	return data, nil
}

// ShieldBattery returns the parsed ShieldBattery record, or nil and a nil
// error when the replay has no such section.
func (r *Replay) ShieldBattery() (*ShieldBatteryData, error) {
	data, err := r.Section(SectionShieldBattery)
	if data == nil || err != nil {
		return nil, err
	}
	return parseShieldBattery(data)
}
