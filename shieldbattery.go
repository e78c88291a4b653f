package bwrep

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ShieldBatteryData is the record the ShieldBattery client embeds in an
// out-of-band "Sbat" section of replays played through it. The record is
// versioned; fields past the version 0 layout are only present when the
// version says so.
type ShieldBatteryData struct {
	Version uint16

	// StarCraftExeBuild is the build number of the game executable used to
	// play the game.
	StarCraftExeBuild uint32
	// ShieldBatteryVersion is the client version string.
	ShieldBatteryVersion string
	// TeamGameMainPlayers marks which players were the "main" players in a
	// team game (e.g. Team Melee).
	TeamGameMainPlayers [4]uint8
	// StartingRaces holds the starting race of each slot.
	StartingRaces [12]Race
	// GameID is the game's ID on ShieldBattery.
	GameID uuid.UUID
	// UserIDs are the ShieldBattery user IDs of the players ingame, in the
	// same order as the slots in the replay header.
	UserIDs [8]uint32

	// gameLogicVersion is only present for Version >= 1.
	gameLogicVersion    uint16
	hasGameLogicVersion bool
}

// GameLogicVersion returns the version of game logic modifications used to
// play the game. Version 0 records do not carry this field; ok is false
// then.
func (d *ShieldBatteryData) GameLogicVersion() (v uint16, ok bool) {
	return d.gameLogicVersion, d.hasGameLogicVersion
}

// parseShieldBattery decodes the raw bytes of a ShieldBattery section.
func parseShieldBattery(data []byte) (*ShieldBatteryData, error) {
	need := 2 + 4 + 16 + 4 + 12 + 16 + 8*4
	if len(data) < need {
		return nil, fmt.Errorf("%w: ShieldBattery record too short", ErrInvalidPayload)
	}

	d := &ShieldBatteryData{}
	d.Version = binary.LittleEndian.Uint16(data[0:2])
	d.StarCraftExeBuild = binary.LittleEndian.Uint32(data[2:6])

	// The version string occupies 16 wire bytes; a string using the full
	// width is terminated implicitly.
	ver := data[6:22]
	if i := bytes.IndexByte(ver, 0); i >= 0 {
		ver = ver[:i]
	}
	d.ShieldBatteryVersion = strings.ToValidUTF8(string(ver), "�")

	copy(d.TeamGameMainPlayers[:], data[22:26])
	for i, b := range data[26:38] {
		d.StartingRaces[i] = raceOf(b)
	}
	copy(d.GameID[:], data[38:54])
	for i := range d.UserIDs {
		d.UserIDs[i] = binary.LittleEndian.Uint32(data[54+4*i:])
	}

	if d.Version >= 1 {
		if len(data) < need+2 {
			return nil, fmt.Errorf("%w: ShieldBattery record missing game logic version", ErrInvalidPayload)
		}
		d.gameLogicVersion = binary.LittleEndian.Uint16(data[need:])
		d.hasGameLogicVersion = true
	}
	return d, nil
}
