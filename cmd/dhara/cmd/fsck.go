package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nandftl/dhara-go/ecc"
	"github.com/nandftl/dhara-go/ftlmap"
	"github.com/nandftl/dhara-go/internal/config"
	"github.com/nandftl/dhara-go/internal/output"
	"github.com/nandftl/dhara-go/journal"
	"github.com/nandftl/dhara-go/nand/filenand"
)

var fsckLog string

func newFsckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fsck",
		Short: "Walk every live sector's trie chain and verify its find terminates and its data matches",
		Args:  cobra.NoArgs,
		RunE:  runFsck,
	}
	cmd.Flags().StringVar(&fsckLog, "log", "", "Session log of \"sector,crc32hex\" lines to check data against (optional)")
	return cmd
}

// loadSessionLog parses a "sector,crc32hex" session log, as produced by an
// external test driver recording what it wrote to each sector.
func loadSessionLog(path string) (map[uint32]uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fsck: opening log %s: %w", path, err)
	}
	defer f.Close()

	want := make(map[uint32]uint32)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("fsck: malformed log line %q", line)
		}
		s, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("fsck: bad sector in log line %q: %w", line, err)
		}
		crc, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 16, 32)
		if err != nil {
			return nil, fmt.Errorf("fsck: bad crc in log line %q: %w", line, err)
		}
		want[uint32(s)] = uint32(crc)
	}
	return want, scanner.Err()
}

func runFsck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	geo := cfg.Geometry.ToNAND()
	path := imagePath(cfg)

	n, err := filenand.Open(path, geo)
	if err != nil {
		return err
	}
	defer n.Close()

	pageBuf := make([]byte, geo.PageSize())
	j := journal.New(n, pageBuf, 8)
	m := ftlmap.New(j, n, cfg.GCRatio)
	if rerr := m.Resume(); rerr != journal.ErrNone {
		return fmt.Errorf("fsck: resume: %v", rerr)
	}

	var want map[uint32]uint32
	if fsckLog != "" {
		want, err = loadSessionLog(fsckLog)
		if err != nil {
			return err
		}
	}

	sectors, err := m.LiveSectors()
	if err != journal.ErrNone {
		return fmt.Errorf("fsck: listing live sectors: %v", err)
	}

	buf := make([]byte, geo.PageSize())
	mismatches := 0
	for _, s := range sectors {
		if rerr := m.Read(s, buf); rerr != journal.ErrNone {
			return fmt.Errorf("fsck: sector %d: find/read failed: %v", s, rerr)
		}
		if want != nil {
			if crc, ok := want[s]; ok && ecc.CRC32(buf) != crc {
				mismatches++
			}
		}
	}

	if output.IsJSON() {
		return output.PrintJSON(cmd.OutOrStdout(), map[string]any{
			"checked":    len(sectors),
			"mismatches": mismatches,
			"session_id": sessionID,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "checked %d live sectors, %d mismatches\n", len(sectors), mismatches)
	if mismatches > 0 {
		return fmt.Errorf("fsck: %d sector(s) failed data verification", mismatches)
	}
	return nil
}
