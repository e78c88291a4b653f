package bwrep

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// headerSectionSize is the decompressed size of the header section. Used as
// a preallocation hint; the parser itself only requires the bytes it reads.
const headerSectionSize = 633

// fieldReader walks a byte blob positionally with a sticky error, so a run
// of reads needs a single check at the end.
type fieldReader struct {
	buf []byte
	off int
	err error
}

func (f *fieldReader) take(n int) []byte {
	if f.err != nil {
		return nil
	}
	if f.off+n > len(f.buf) {
		f.err = fmt.Errorf("%w: truncated at offset %d", ErrMalformedHeader, f.off)
		return nil
	}
	b := f.buf[f.off : f.off+n]
	f.off += n
	return b
}

func (f *fieldReader) skip(n int) { f.take(n) }

func (f *fieldReader) u8() uint8 {
	b := f.take(1)
	if f.err != nil {
		return 0
	}
	return b[0]
}

func (f *fieldReader) u16() uint16 {
	b := f.take(2)
	if f.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (f *fieldReader) u32() uint32 {
	b := f.take(4)
	if f.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// cstring reads a width-byte region holding a NUL-terminated string. The
// final byte of the region is reserved to guarantee a terminator, so a
// region without any NUL is malformed. Invalid UTF-8 is replaced, not
// rejected.
func (f *fieldReader) cstring(width int) string {
	b := f.take(width)
	if f.err != nil {
		return ""
	}
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		f.err = fmt.Errorf("%w: unterminated string at offset %d", ErrMalformedHeader, f.off-width)
		return ""
	}
	return strings.ToValidUTF8(string(b[:i]), "�")
}

// parseHeader decodes the decompressed header section blob into a Header.
// All multi-byte integers are little-endian and the layout is fixed; any
// short field is a malformed-header error.
func parseHeader(data []byte) (*Header, error) {
	f := &fieldReader{buf: data}
	h := &Header{}

	h.Engine = Engine(f.u8())
	h.Frames = f.u32()
	f.skip(3)
	h.Seed = f.u32()
	f.skip(12)
	h.Title = f.cstring(29)
	h.MapWidth = f.u16()
	h.MapHeight = f.u16()
	f.skip(1)
	h.AvailableSlots = f.u8()

	speed := f.u8()
	if f.err == nil && speed > uint8(SpeedFastest) {
		return nil, fmt.Errorf("%w: invalid game speed %d", ErrMalformedHeader, speed)
	}
	h.Speed = GameSpeed(speed)

	f.skip(1)
	h.Type = GameType(f.u16())
	h.SubType = f.u16()
	f.skip(8)
	h.Host = f.cstring(25)
	f.skip(1)
	h.MapName = f.cstring(27)
	f.skip(38)

	for i := range h.Slots {
		p := &h.Slots[i]
		p.SlotID = f.u16()
		f.skip(2)
		p.NetworkID = f.u8()
		f.skip(3)

		typ := f.u8()
		if f.err == nil && typ > uint8(PlayerTypeClosed) {
			return nil, fmt.Errorf("%w: invalid player type %d in slot %d", ErrMalformedHeader, typ, i)
		}
		p.Type = PlayerType(typ)

		p.Race = raceOf(f.u8())
		p.Team = f.u8()
		p.Name = f.cstring(26)
	}

	if f.err != nil {
		return nil, f.err
	}
	return h, nil
}
