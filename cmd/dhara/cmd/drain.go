package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nandftl/dhara-go/ftlmap"
	"github.com/nandftl/dhara-go/internal/config"
	"github.com/nandftl/dhara-go/internal/output"
	"github.com/nandftl/dhara-go/journal"
	"github.com/nandftl/dhara-go/nand/filenand"
)

func newDrainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Read back and trim every live sector",
		Args:  cobra.NoArgs,
		RunE:  runDrain,
	}
}

func runDrain(cmd *cobra.Command, args []string) error {
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
		return fmt.Errorf("drain: resume: %v", err)
	}

	sectors, err := m.LiveSectors()
	if err != journal.ErrNone {
		return fmt.Errorf("drain: listing live sectors: %v", err)
	}

	buf := make([]byte, geo.PageSize())
	drained := 0
	for _, s := range sectors {
		if rerr := m.Read(s, buf); rerr != journal.ErrNone {
			return fmt.Errorf("drain: read sector %d: %v", s, rerr)
		}
		if terr := m.Trim(s); terr != journal.ErrNone {
			return fmt.Errorf("drain: trim sector %d: %v", s, terr)
		}
		drained++
	}
	if err := m.Sync(); err != journal.ErrNone {
		return fmt.Errorf("drain: sync: %v", err)
	}

	if output.IsJSON() {
		return output.PrintJSON(cmd.OutOrStdout(), map[string]any{
			"drained":    drained,
			"session_id": sessionID,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "drained %d sectors\n", drained)
	return nil
}
