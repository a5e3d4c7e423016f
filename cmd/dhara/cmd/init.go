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

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a fresh NAND image for the configured geometry",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}
	return cmd
}

func runInit(cmd *cobra.Command, args []string) error {
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
		return fmt.Errorf("init: %v", err)
	}
	if err := m.Sync(); err != journal.ErrNone {
		return fmt.Errorf("init: %v", err)
	}

	if output.IsJSON() {
		return output.PrintJSON(cmd.OutOrStdout(), map[string]any{
			"image":      path,
			"capacity":   m.Capacity(),
			"session_id": sessionID,
			"page_size":  geo.PageSize(),
			"num_blocks": geo.NumBlocks,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "initialized %s: capacity=%d pages page_size=%d num_blocks=%d\n",
		path, m.Capacity(), geo.PageSize(), geo.NumBlocks)
	return nil
}
