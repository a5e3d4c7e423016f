// Package cmd implements the dhara CLI harness: init, fill, drain, resume,
// inspect and fsck subcommands over a file-backed NAND image, in the shape
// dh-cli's internal/cmd package uses (newXCmd() *cobra.Command, RunE, a
// small JSON/plain output helper).
package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nandftl/dhara-go/internal/config"
	"github.com/nandftl/dhara-go/internal/output"
	"github.com/nandftl/dhara-go/internal/telemetry"
)

var (
	jsonFlag  bool
	homeFlag  string
	sessionID = uuid.New().String()
)

// NewRootCmd builds the dhara root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dhara",
		Short:         "Crash-safe flash translation layer harness",
		Long:          "dhara drives a journal and map instance over a file-backed NAND image for testing and inspection.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if homeFlag != "" {
				config.SetHomeDir(homeFlag)
			}
			output.SetJSON(jsonFlag)
			return nil
		},
	}

	pflags := root.PersistentFlags()
	pflags.BoolVarP(&jsonFlag, "json", "j", false, "Output as JSON")
	pflags.StringVar(&homeFlag, "home", "", "Override harness home directory (default: ~/.dhara)")

	root.AddCommand(newInitCmd())
	root.AddCommand(newFillCmd())
	root.AddCommand(newDrainCmd())
	root.AddCommand(newResumeCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newFsckCmd())

	return root
}

// Execute runs the dhara root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func newLogger() *telemetry.Logger {
	return telemetry.New(jsonFlag)
}

func imagePath(cfg *config.Config) string {
	if cfg.Image == "" {
		return "nand.img"
	}
	if cfg.Image[0] == '/' {
		return cfg.Image
	}
	return fmt.Sprintf("%s/%s", config.Home(), cfg.Image)
}
