package bwrep

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/klauspost/compress/zlib"
)

// Test fixtures are constructed byte-for-byte rather than checked in as
// binary files. The helpers below build header blobs, chunked sections and
// whole containers in all three formats; imploded chunks are produced by a
// minimal literal-only implode writer.

type bitWriter struct {
	buf  []byte
	cur  uint
	bits uint
}

func (w *bitWriter) write(v, n uint) {
	for i := uint(0); i < n; i++ {
		w.cur |= (v >> i & 1) << w.bits
		w.bits++
		if w.bits == 8 {
			w.buf = append(w.buf, byte(w.cur))
			w.cur, w.bits = 0, 0
		}
	}
}

func (w *bitWriter) bytes() []byte {
	if w.bits > 0 {
		w.buf = append(w.buf, byte(w.cur))
		w.cur, w.bits = 0, 0
	}
	return w.buf
}

// implodeEndOfStream writes the end marker: a set flag bit, the length code
// for symbol 15 (seven zero bits) and eight set extra bits, yielding the
// length value 519.
func implodeEndOfStream(w *bitWriter) {
	w.write(1, 1)
	w.write(0, 7)
	w.write(0xff, 8)
}

// implodeBytes produces a valid imploded stream that stores data as uncoded
// literals. First byte 0 (uncoded literals) also keeps the stream from
// looking like zlib.
func implodeBytes(data []byte) []byte {
	w := &bitWriter{}
	w.write(0, 8) // uncoded literals
	w.write(4, 8) // 1 KiB dictionary
	for _, b := range data {
		w.write(0, 1)
		w.write(uint(b), 8)
	}
	implodeEndOfStream(w)
	return w.bytes()
}

func zlibBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatalf("zlib write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zlib close: %v", err)
	}
	return buf.Bytes()
}

func u16le(v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return b[:]
}

func u32le(v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return b[:]
}

// chunkedSection builds a section in the chunked layout: checksum, chunk
// count, then a size-prefixed body per chunk.
func chunkedSection(chunks ...[]byte) []byte {
	out := u32le(0) // checksum, not validated
	out = append(out, u32le(uint32(len(chunks)))...)
	for _, c := range chunks {
		out = append(out, u32le(uint32(len(c)))...)
		out = append(out, c...)
	}
	return out
}

// taggedSection builds a modern tagged section: 4-byte tag, 4-byte size,
// raw data.
func taggedSection(tag string, data []byte) []byte {
	out := append([]byte(nil), tag...)
	out = append(out, u32le(uint32(len(data)))...)
	return append(out, data...)
}

// slotSpec describes one player slot of a fixture header.
type slotSpec struct {
	id      uint16
	network uint8
	typ     PlayerType
	race    Race
	team    uint8
	name    string
}

// headerSpec describes a fixture header blob.
type headerSpec struct {
	engine  Engine
	frames  uint32
	seed    uint32
	title   string
	mapW    uint16
	mapH    uint16
	slots   uint8
	speed   GameSpeed
	typ     GameType
	subType uint16
	host    string
	mapName string
	players [12]slotSpec
}

// blob lays the spec out as the fixed 633-byte header section body.
func (s headerSpec) blob() []byte {
	b := make([]byte, headerSectionSize)
	b[0] = byte(s.engine)
	binary.LittleEndian.PutUint32(b[1:], s.frames)
	binary.LittleEndian.PutUint32(b[8:], s.seed)
	copy(b[24:24+28], s.title)
	binary.LittleEndian.PutUint16(b[53:], s.mapW)
	binary.LittleEndian.PutUint16(b[55:], s.mapH)
	b[58] = s.slots
	b[59] = byte(s.speed)
	binary.LittleEndian.PutUint16(b[61:], uint16(s.typ))
	binary.LittleEndian.PutUint16(b[63:], s.subType)
	copy(b[73:73+24], s.host)
	copy(b[99:99+26], s.mapName)
	for i, p := range s.players {
		off := 164 + 37*i
		binary.LittleEndian.PutUint16(b[off:], p.id)
		b[off+4] = p.network
		b[off+8] = byte(p.typ)
		b[off+9] = byte(p.race)
		b[off+10] = p.team
		copy(b[off+11:off+11+25], p.name)
	}
	return b
}

// legacyHeaderSpec matches the well-known legacy fixture: a short Brood War
// game on Shadowlands hosted by neiv.
func legacyHeaderSpec() headerSpec {
	s := headerSpec{
		engine:  EngineBroodWar,
		frames:  894,
		seed:    1100000000,
		title:   "neiv",
		mapW:    128,
		mapH:    128,
		slots:   8,
		speed:   SpeedFastest,
		typ:     GameTypeTopVsBottom,
		subType: 2,
		host:    "neiv",
		mapName: "Shadowlands",
	}
	s.players[0] = slotSpec{id: 0, network: 0, typ: PlayerTypeHuman, race: RaceZerg, team: 1, name: "neiv"}
	s.players[1] = slotSpec{id: 1, network: 255, typ: PlayerTypeComputer, race: RaceTerran, team: 2, name: "Sargas Tribe"}
	for i := 2; i < 12; i++ {
		s.players[i] = slotSpec{id: uint16(i), network: 255, typ: PlayerTypeInactive}
	}
	return s
}

// modernHeaderSpec matches the well-known 1.21+ fixture: a human Terran "u"
// against a Protoss computer.
func modernHeaderSpec() headerSpec {
	s := headerSpec{
		engine:  EngineBroodWar,
		frames:  715,
		seed:    1500000000,
		title:   "u",
		mapW:    128,
		mapH:    112,
		slots:   8,
		speed:   SpeedFastest,
		typ:     GameTypeMelee,
		subType: 1,
		host:    "u",
		mapName: "Fighting Spirit",
	}
	s.players[0] = slotSpec{id: 0, network: 0, typ: PlayerTypeHuman, race: RaceTerran, team: 1, name: "u"}
	s.players[1] = slotSpec{id: 1, network: 255, typ: PlayerTypeComputer, race: RaceProtoss, team: 2, name: "Sargas Tribe"}
	for i := 2; i < 12; i++ {
		s.players[i] = slotSpec{id: uint16(i), network: 255, typ: PlayerTypeInactive}
	}
	return s
}

// buildLegacyReplay assembles a complete legacy-format container around the
// given header blob. commands, mapData and playerNames become the bodies of
// the respective sections.
func buildLegacyReplay(header, commands, mapData, playerNames []byte) []byte {
	var out []byte
	out = append(out, chunkedSection([]byte("reRS"))...)
	out = append(out, chunkedSection(implodeBytes(header))...)
	out = append(out, chunkedSection(u32le(uint32(len(commands))))...)
	out = append(out, chunkedSection(implodeBytes(commands))...)
	out = append(out, chunkedSection(u32le(uint32(len(mapData))))...)
	out = append(out, chunkedSection(implodeBytes(mapData))...)
	out = append(out, chunkedSection(implodeBytes(playerNames))...)
	return out
}

// buildModernReplay assembles a modern container. modern121 selects the
// `seRS` magic plus the extra offset-hint field. tagged sections, if any,
// are appended verbatim.
func buildModernReplay(t *testing.T, modern121 bool, header, commands, mapData, playerNames []byte, tagged ...[]byte) []byte {
	t.Helper()
	magic := "reRS"
	if modern121 {
		magic = "seRS"
	}
	var out []byte
	out = append(out, chunkedSection([]byte(magic))...)
	if modern121 {
		out = append(out, u32le(0)...) // offset hint, ignored by the parser
	}
	out = append(out, chunkedSection(zlibBytes(t, header))...)
	out = append(out, chunkedSection(u32le(uint32(len(commands))))...)
	out = append(out, chunkedSection(zlibBytes(t, commands))...)
	out = append(out, chunkedSection(u32le(uint32(len(mapData))))...)
	out = append(out, chunkedSection(zlibBytes(t, mapData))...)
	out = append(out, chunkedSection(zlibBytes(t, playerNames))...)
	for _, s := range tagged {
		out = append(out, s...)
	}
	return out
}
