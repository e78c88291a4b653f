// Command bwrep inspects StarCraft: Brood War replay files.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	bwrep "github.com/logicossoftware/go-bwrep"
)

var (
	flagJSON     bool
	flagSection  string
	flagOut      string
	flagMaxSize  uint64
	flagMaxRatio float64
	flagMaxTime  time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "bwrep <replay.rep>",
	Short: "Parse and display StarCraft: Brood War replay files",
	Long: `bwrep parses a Brood War replay container and prints its header:
game settings, map, players and observers. It can also dump the raw bytes
of any section for further analysis.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := bwrep.ParseFile(args[0], bwrep.WithDecompressionConfig(bwrep.DecompressionConfig{
			MaxDecompressedSize:  flagMaxSize,
			MaxCompressionRatio:  flagMaxRatio,
			MaxDecompressionTime: flagMaxTime,
		}))
		if err != nil {
			return fmt.Errorf("failed to parse replay: %w", err)
		}
		defer r.Close()

		if flagSection != "" {
			return dumpSection(r, flagSection, flagOut)
		}
		if flagJSON {
			return printJSON(r)
		}
		printSummary(r)
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&flagJSON, "json", false, "print replay info as JSON")
	rootCmd.Flags().StringVar(&flagSection, "section", "", "dump the raw bytes of a section by 4-byte tag (e.g. SKIN) or name (Header, Commands, MapData, PlayerNames)")
	rootCmd.Flags().StringVarP(&flagOut, "out", "o", "", "write --section output to a file instead of stdout")
	rootCmd.Flags().Uint64Var(&flagMaxSize, "max-size", 0, "max decompressed bytes per section (0 = default 100 MiB)")
	rootCmd.Flags().Float64Var(&flagMaxRatio, "max-ratio", 0, "max compression ratio (0 = default 500)")
	rootCmd.Flags().DurationVar(&flagMaxTime, "max-time", 0, "max decompression time per section (0 = default 30s)")
}

func sectionByName(name string) (bwrep.SectionID, bool) {
	switch name {
	case "Header":
		return bwrep.SectionHeader, true
	case "Commands":
		return bwrep.SectionCommands, true
	case "MapData":
		return bwrep.SectionMapData, true
	case "PlayerNames":
		return bwrep.SectionPlayerNames, true
	}
	if len(name) != 4 {
		return bwrep.SectionID{}, false
	}
	var tag [4]byte
	copy(tag[:], name)
	return bwrep.SectionForTag(tag), true
}

func dumpSection(r *bwrep.Replay, name, out string) error {
	id, ok := sectionByName(name)
	if !ok {
		return fmt.Errorf("unknown section %q (use a name or a 4-byte tag)", name)
	}
	data, err := r.Section(id)
	if err != nil {
		return fmt.Errorf("failed to read section %s: %w", id, err)
	}
	if data == nil {
		return fmt.Errorf("replay has no %s section", id)
	}
	if out == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(out, data, 0o644)
}

type playerInfo struct {
	SlotID     uint16 `json:"slotId"`
	NetworkID  uint8  `json:"networkId"`
	PlayerType string `json:"playerType"`
	Race       string `json:"race"`
	Team       uint8  `json:"team"`
	Name       string `json:"name"`
	IsEmpty    bool   `json:"isEmpty"`
	IsObserver bool   `json:"isObserver"`
}

type replayInfo struct {
	Format        string       `json:"format"`
	Engine        string       `json:"engine"`
	Frames        uint32       `json:"frames"`
	StartTime     int64        `json:"startTime"`
	GameTitle     string       `json:"gameTitle"`
	MapName       string       `json:"mapName"`
	MapWidth      uint16       `json:"mapWidth"`
	MapHeight     uint16       `json:"mapHeight"`
	GameSpeed     string       `json:"gameSpeed"`
	GameType      string       `json:"gameType"`
	GameSubType   uint16       `json:"gameSubType"`
	HostName      string       `json:"hostName"`
	Players       []playerInfo `json:"players"`
	ActivePlayers []playerInfo `json:"activePlayers"`
	Observers     []playerInfo `json:"observers"`
}

func toPlayerInfo(p *bwrep.Player) playerInfo {
	return playerInfo{
		SlotID:     p.SlotID,
		NetworkID:  p.NetworkID,
		PlayerType: p.Type.String(),
		Race:       p.Race.String(),
		Team:       p.Team,
		Name:       p.Name,
		IsEmpty:    p.IsEmpty(),
		IsObserver: p.IsObserver(),
	}
}

func printJSON(r *bwrep.Replay) error {
	h := r.Header()
	info := replayInfo{
		Format:      r.Format().String(),
		Engine:      h.Engine.String(),
		Frames:      h.Frames,
		StartTime:   h.StartTime().Unix(),
		GameTitle:   h.Title,
		MapName:     h.MapName,
		MapWidth:    h.MapWidth,
		MapHeight:   h.MapHeight,
		GameSpeed:   h.Speed.String(),
		GameType:    h.Type.String(),
		GameSubType: h.SubType,
		HostName:    h.Host,
	}
	for i := range h.Slots {
		info.Players = append(info.Players, toPlayerInfo(&h.Slots[i]))
	}
	for _, p := range h.Players() {
		info.ActivePlayers = append(info.ActivePlayers, toPlayerInfo(p))
	}
	for _, p := range h.Observers() {
		info.Observers = append(info.Observers, toPlayerInfo(p))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}

func printSummary(r *bwrep.Replay) {
	h := r.Header()

	fmt.Println("StarCraft 1 Replay Information")
	fmt.Println("=============================")
	fmt.Println()

	fmt.Println("Game Information:")
	fmt.Printf("  Format:        %s\n", r.Format())
	fmt.Printf("  Engine:        %s\n", h.Engine)
	fmt.Printf("  Duration:      %s (%d frames at %s)\n", formatDuration(h.Duration()), h.Frames, h.Speed)
	fmt.Printf("  Started:       %s\n", h.StartTime().Format("2006-01-02 15:04:05"))
	fmt.Printf("  Title:         %s\n", h.Title)
	fmt.Printf("  Map:           %s (%dx%d)\n", h.MapName, h.MapWidth, h.MapHeight)
	fmt.Println()

	fmt.Println("Game Settings:")
	fmt.Printf("  Speed:         %s\n", h.Speed)
	fmt.Printf("  Type:          %s\n", h.Type)
	fmt.Printf("  Host:          %s\n", h.Host)
	fmt.Println()

	if players := h.Players(); len(players) > 0 {
		fmt.Println("Players:")
		for i, p := range players {
			fmt.Printf("  [%d] %s (%s, %s, Team %d)\n", i+1, p.Name, p.Race, p.Type, p.Team)
		}
		fmt.Println()
	}

	if obs := h.Observers(); len(obs) > 0 {
		fmt.Println("Observers:")
		for _, p := range obs {
			fmt.Printf("  [Obs] %s\n", p.Name)
		}
		fmt.Println()
	}

	if sb, err := r.ShieldBattery(); err == nil && sb != nil {
		fmt.Println("ShieldBattery:")
		fmt.Printf("  Client:        %s (build %d)\n", sb.ShieldBatteryVersion, sb.StarCraftExeBuild)
		fmt.Printf("  Game ID:       %s\n", sb.GameID)
		fmt.Println()
	}
}

func formatDuration(d time.Duration) string {
	secs := int64(d.Seconds())
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
