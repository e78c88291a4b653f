package bwrep

import (
	"fmt"
	"time"
)

// ReplayFormat is the container layout family of a replay, determined by the
// magic bytes at offset 12 and the compression marker at offset 28.
type ReplayFormat uint8

const (
	// FormatLegacy is used by replays created before patch 1.18.
	FormatLegacy ReplayFormat = iota
	// FormatModern is used by replays created between 1.18 and 1.21.
	FormatModern
	// FormatModern121 is used by replays created with 1.21 or later.
	FormatModern121
)

func (f ReplayFormat) String() string {
	switch f {
	case FormatLegacy:
		return "legacy"
	case FormatModern:
		return "modern"
	case FormatModern121:
		return "modern 1.21+"
	default:
		return fmt.Sprintf("ReplayFormat(%d)", uint8(f))
	}
}

// Engine identifies the game engine a replay was recorded under.
type Engine uint8

const (
	EngineStarCraft Engine = 0
	EngineBroodWar  Engine = 1
)

func (e Engine) String() string {
	switch e {
	case EngineStarCraft:
		return "StarCraft"
	case EngineBroodWar:
		return "Brood War"
	default:
		return fmt.Sprintf("Engine(0x%02x)", uint8(e))
	}
}

// GameSpeed is the speed setting the game was played at. Only the values
// SpeedSlowest through SpeedFastest are valid in a replay header.
type GameSpeed uint8

const (
	SpeedSlowest GameSpeed = iota
	SpeedSlower
	SpeedSlow
	SpeedNormal
	SpeedFast
	SpeedFaster
	SpeedFastest
)

func (s GameSpeed) String() string {
	switch s {
	case SpeedSlowest:
		return "Slowest"
	case SpeedSlower:
		return "Slower"
	case SpeedSlow:
		return "Slow"
	case SpeedNormal:
		return "Normal"
	case SpeedFast:
		return "Fast"
	case SpeedFaster:
		return "Faster"
	case SpeedFastest:
		return "Fastest"
	default:
		return fmt.Sprintf("GameSpeed(%d)", uint8(s))
	}
}

// FrameDuration returns the wall-clock time one game frame takes at this
// speed. Multiplied by Header.Frames it gives the game duration.
func (s GameSpeed) FrameDuration() time.Duration {
	switch s {
	case SpeedSlowest:
		return 167 * time.Millisecond
	case SpeedSlower:
		return 111 * time.Millisecond
	case SpeedSlow:
		return 83 * time.Millisecond
	case SpeedNormal:
		return 67 * time.Millisecond
	case SpeedFast:
		return 56 * time.Millisecond
	case SpeedFaster:
		return 48 * time.Millisecond
	default:
		return 42 * time.Millisecond
	}
}

// GameType is the lobby game type. Unknown numeric values are preserved
// rather than rejected, since the set has grown over patches.
type GameType uint16

const (
	GameTypeNone               GameType = 0x00
	GameTypeCustom             GameType = 0x01
	GameTypeMelee              GameType = 0x02
	GameTypeFreeForAll         GameType = 0x03
	GameTypeOneOnOne           GameType = 0x04
	GameTypeCaptureTheFlag     GameType = 0x05
	GameTypeGreed              GameType = 0x06
	GameTypeSlaughter          GameType = 0x07
	GameTypeSuddenDeath        GameType = 0x08
	GameTypeLadder             GameType = 0x09
	GameTypeUseMapSettings     GameType = 0x0a
	GameTypeTeamMelee          GameType = 0x0b
	GameTypeTeamFreeForAll     GameType = 0x0c
	GameTypeTeamCaptureTheFlag GameType = 0x0d
	GameTypeTopVsBottom        GameType = 0x0f
	GameTypeIronManLadder      GameType = 0x10
)

func (t GameType) String() string {
	switch t {
	case GameTypeNone:
		return "None"
	case GameTypeCustom:
		return "Custom"
	case GameTypeMelee:
		return "Melee"
	case GameTypeFreeForAll:
		return "Free For All"
	case GameTypeOneOnOne:
		return "One on One"
	case GameTypeCaptureTheFlag:
		return "Capture The Flag"
	case GameTypeGreed:
		return "Greed"
	case GameTypeSlaughter:
		return "Slaughter"
	case GameTypeSuddenDeath:
		return "Sudden Death"
	case GameTypeLadder:
		return "Ladder"
	case GameTypeUseMapSettings:
		return "Use Map Settings"
	case GameTypeTeamMelee:
		return "Team Melee"
	case GameTypeTeamFreeForAll:
		return "Team Free For All"
	case GameTypeTeamCaptureTheFlag:
		return "Team Capture The Flag"
	case GameTypeTopVsBottom:
		return "Top vs Bottom"
	case GameTypeIronManLadder:
		return "Iron Man Ladder"
	default:
		return fmt.Sprintf("GameType(%d)", uint16(t))
	}
}

// PlayerType is the kind of participant occupying a slot. Only the values
// 0 through 8 are valid in a replay header.
type PlayerType uint8

const (
	PlayerTypeInactive PlayerType = iota
	PlayerTypeComputer
	PlayerTypeHuman
	PlayerTypeRescuePassive
	PlayerTypeUnused
	PlayerTypeComputerControlled
	PlayerTypeOpen
	PlayerTypeNeutral
	PlayerTypeClosed
)

func (t PlayerType) String() string {
	switch t {
	case PlayerTypeInactive:
		return "Inactive"
	case PlayerTypeComputer:
		return "Computer"
	case PlayerTypeHuman:
		return "Human"
	case PlayerTypeRescuePassive:
		return "Rescue Passive"
	case PlayerTypeUnused:
		return "Unused"
	case PlayerTypeComputerControlled:
		return "Computer Controlled"
	case PlayerTypeOpen:
		return "Open"
	case PlayerTypeNeutral:
		return "Neutral"
	case PlayerTypeClosed:
		return "Closed"
	default:
		return fmt.Sprintf("PlayerType(%d)", uint8(t))
	}
}

// Race is a player's race. Unknown values decode as RaceRandom rather
// than failing, matching how the game itself treats them.
type Race uint8

const (
	RaceZerg    Race = 0
	RaceTerran  Race = 1
	RaceProtoss Race = 2
	RaceRandom  Race = 6
)

func (r Race) String() string {
	switch r {
	case RaceZerg:
		return "Zerg"
	case RaceTerran:
		return "Terran"
	case RaceProtoss:
		return "Protoss"
	case RaceRandom:
		return "Random"
	default:
		return fmt.Sprintf("Race(%d)", uint8(r))
	}
}

// raceOf maps a raw header byte to a Race, defaulting to RaceRandom.
func raceOf(b byte) Race {
	switch Race(b) {
	case RaceZerg, RaceTerran, RaceProtoss:
		return Race(b)
	default:
		return RaceRandom
	}
}

// Player is one of the fixed 12 slots of a game. Unused slots are present
// with an empty name rather than omitted.
type Player struct {
	// ID of the map slot the player was placed in.
	SlotID uint16
	// Network ID: 0-127 is a real network slot, 255 a computer,
	// 128-131 an observer.
	NetworkID uint8
	Type      PlayerType
	Race      Race
	Team      uint8
	Name      string
}

// IsEmpty reports whether the slot is unoccupied.
func (p *Player) IsEmpty() bool { return p.Name == "" }

// IsObserver reports whether the slot holds an observer. The network ID
// range test is the sole rule for this.
func (p *Player) IsObserver() bool { return p.NetworkID >= 128 && p.NetworkID <= 131 }

// Header is the decoded fixed-layout replay header.
type Header struct {
	Engine Engine
	// Frames is the number of game frames the replay contains.
	Frames uint32
	// Seed is the game's random seed, conventionally a Unix timestamp of
	// when the game started.
	Seed  uint32
	Title string
	// Map dimensions, in tiles.
	MapWidth  uint16
	MapHeight uint16
	// AvailableSlots is the number of player slots the map offers.
	AvailableSlots uint8
	Speed          GameSpeed
	Type           GameType
	SubType        uint16
	Host           string
	MapName        string
	// Slots always holds exactly 12 entries; unused ones are empty.
	Slots [12]Player
}

// StartTime interprets the seed as a Unix timestamp.
func (h *Header) StartTime() time.Time {
	return time.Unix(int64(h.Seed), 0).UTC()
}

// Duration returns the wall-clock length of the game.
func (h *Header) Duration() time.Duration {
	return time.Duration(h.Frames) * h.Speed.FrameDuration()
}

// Players returns the occupied, non-observer slots.
func (h *Header) Players() []*Player {
	var out []*Player
	for i := range h.Slots {
		if p := &h.Slots[i]; !p.IsEmpty() && !p.IsObserver() {
			out = append(out, p)
		}
	}
	return out
}

// Observers returns the occupied observer slots.
func (h *Header) Observers() []*Player {
	var out []*Player
	for i := range h.Slots {
		if p := &h.Slots[i]; !p.IsEmpty() && p.IsObserver() {
			out = append(out, p)
		}
	}
	return out
}

type knownSection uint8

const (
	ksCustom knownSection = iota
	ksHeader
	ksCommands
	ksMapData
	ksPlayerNames
	ksSkins
	ksLimits
	ksBugFix
	ksCustomColors
	ksGameConfig
	ksShieldBattery
)

// SectionID identifies one data section of the container. Recognized
// sections compare by their identity constant; unrecognized ones carry and
// compare by their raw 4-byte tag. The zero value is not a valid identity.
type SectionID struct {
	known knownSection
	tag   [4]byte
}

var (
	// The four mandatory sections present in every replay, in file order.
	// They carry no tag on the wire.
	SectionHeader      = SectionID{known: ksHeader}
	SectionCommands    = SectionID{known: ksCommands}
	SectionMapData     = SectionID{known: ksMapData}
	SectionPlayerNames = SectionID{known: ksPlayerNames}

	// Tagged sections found in modern replays.
	SectionSkins         = SectionID{known: ksSkins}
	SectionLimits        = SectionID{known: ksLimits}
	SectionBugFix        = SectionID{known: ksBugFix}
	SectionCustomColors  = SectionID{known: ksCustomColors}
	SectionGameConfig    = SectionID{known: ksGameConfig}
	SectionShieldBattery = SectionID{known: ksShieldBattery}
)

// SectionForTag returns the identity for a 4-byte wire tag, mapping
// recognized tags to their well-known identities and anything else to an
// opaque custom identity carrying the tag.
func SectionForTag(tag [4]byte) SectionID {
	switch string(tag[:]) {
	case "SKIN":
		return SectionSkins
	case "LMTS":
		return SectionLimits
	case "BFIX":
		return SectionBugFix
	case "CCLR":
		return SectionCustomColors
	case "GCFG":
		return SectionGameConfig
	case "Sbat":
		return SectionShieldBattery
	default:
		return SectionID{known: ksCustom, tag: tag}
	}
}

func (id SectionID) String() string {
	switch id.known {
	case ksHeader:
		return "Header"
	case ksCommands:
		return "Commands"
	case ksMapData:
		return "MapData"
	case ksPlayerNames:
		return "PlayerNames"
	case ksSkins:
		return "SKIN"
	case ksLimits:
		return "LMTS"
	case ksBugFix:
		return "BFIX"
	case ksCustomColors:
		return "CCLR"
	case ksGameConfig:
		return "GCFG"
	case ksShieldBattery:
		return "Sbat"
	default:
		return fmt.Sprintf("%q", id.tag[:])
	}
}

// tagged reports whether the section is preceded by a 4-byte tag and size
// on the wire, as opposed to the chunked layout of the mandatory sections.
func (id SectionID) tagged() bool {
	switch id.known {
	case ksHeader, ksCommands, ksMapData, ksPlayerNames:
		return false
	default:
		return true
	}
}
