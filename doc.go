// Package bwrep reads StarCraft: Brood War replay files (.rep).
//
// A replay is a compressed multi-section container. This package detects
// the container format (legacy, modern, or 1.21+), indexes every section in
// a single pass, eagerly decodes and parses the header, and materializes
// any other section's bytes on demand.
//
// # Basic Usage
//
//	r, err := bwrep.ParseFile("game.rep")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer r.Close()
//	h := r.Header()
//	fmt.Println(h.MapName, h.Frames)
//	for _, p := range h.Players() {
//		fmt.Println(p.Name, p.Race)
//	}
//
// Any seekable source works; use Parse with a *bytes.Reader for in-memory
// data. The command and map data sections are returned as raw bytes for the
// caller to interpret:
//
//	cmds, err := r.Section(bwrep.SectionCommands)
//
// # Security Considerations
//
// Replay files are treated as untrusted input. Every decompression runs
// under a [DecompressionConfig] bounding output size, compression ratio and
// wall-clock time, so a crafted file cannot expand into unbounded memory or
// CPU use. The defaults (100 MiB, 500:1, 30s) are far above anything a real
// replay produces; tighten them with [WithDecompressionConfig] when dealing
// with particularly hostile sources.
package bwrep
