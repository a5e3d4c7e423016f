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

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Cold-start against an existing image and print the recovered state",
		Args:  cobra.NoArgs,
		RunE:  runResume,
	}
}

func runResume(cmd *cobra.Command, args []string) error {
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
		return fmt.Errorf("resume: %v", rerr)
	}

	if output.IsJSON() {
		return output.PrintJSON(cmd.OutOrStdout(), map[string]any{
			"head":       j.Head(),
			"tail":       j.Tail(),
			"root":       j.Root(),
			"epoch":      j.Epoch(),
			"size":       m.Size(),
			"session_id": sessionID,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "resumed: head=%d tail=%d root=%d epoch=%d size=%d\n",
		j.Head(), j.Tail(), j.Root(), j.Epoch(), m.Size())
	return nil
}
