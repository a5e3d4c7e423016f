package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nandftl/dhara-go/ftlmap"
	"github.com/nandftl/dhara-go/internal/config"
	"github.com/nandftl/dhara-go/internal/output"
	"github.com/nandftl/dhara-go/internal/telemetry"
	"github.com/nandftl/dhara-go/journal"
	"github.com/nandftl/dhara-go/nand/filenand"
)

var fillSectors int

func newFillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Write sequential sectors until the map reports MapFull",
		Args:  cobra.NoArgs,
		RunE:  runFill,
	}
	cmd.Flags().IntVar(&fillSectors, "sectors", 0, "Stop after writing this many sectors (0 = until MapFull)")
	return cmd
}

func runFill(cmd *cobra.Command, args []string) error {
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
	if err := m.Resume(); err != journal.ErrNone {
		return fmt.Errorf("fill: resume: %v", err)
	}

	logger := newLogger()
	data := make([]byte, geo.PageSize())
	written := 0
	for s := uint32(0); fillSectors == 0 || written < fillSectors; s++ {
		for i := range data {
			data[i] = byte(s) ^ byte(i)
		}
		werr := m.Write(s, data)
		if werr == ftlmap.ErrMapFull {
			break
		}
		if werr != ftlmap.ErrNone {
			return fmt.Errorf("fill: write sector %d: %v", s, werr)
		}
		written++
	}
	if err := m.Sync(); err != journal.ErrNone {
		return fmt.Errorf("fill: sync: %v", err)
	}
	logger.WithFields(telemetry.JournalFields(j)).Info("fill complete")

	if output.IsJSON() {
		return output.PrintJSON(cmd.OutOrStdout(), map[string]any{
			"written":    written,
			"size":       m.Size(),
			"session_id": sessionID,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d sectors (map size now %d)\n", written, m.Size())
	return nil
}
