package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nandftl/dhara-go/ftlmap"
	"github.com/nandftl/dhara-go/internal/config"
	"github.com/nandftl/dhara-go/internal/output"
	"github.com/nandftl/dhara-go/journal"
	"github.com/nandftl/dhara-go/nand"
	"github.com/nandftl/dhara-go/nand/filenand"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Print geometry, capacity, size and bad-block counts",
		Args:  cobra.NoArgs,
		RunE:  runInspect,
	}
}

func runInspect(cmd *cobra.Command, args []string) error {
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
		return fmt.Errorf("inspect: %v", rerr)
	}

	bad := countBad(n, geo)

	if output.IsJSON() {
		return output.PrintJSON(cmd.OutOrStdout(), map[string]any{
			"image":      path,
			"page_size":  geo.PageSize(),
			"num_blocks": geo.NumBlocks,
			"capacity":   m.Capacity(),
			"size":       m.Size(),
			"bad_blocks": bad,
			"session_id": sessionID,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "image=%s page_size=%d num_blocks=%d capacity=%d size=%d bad_blocks=%d\n",
		path, geo.PageSize(), geo.NumBlocks, m.Capacity(), m.Size(), bad)
	return nil
}

func countBad(n nand.NAND, geo nand.Geometry) int {
	bad := 0
	for b := nand.Block(0); b < nand.Block(geo.NumBlocks); b++ {
		if n.IsBad(b) {
			bad++
		}
	}
	return bad
}
