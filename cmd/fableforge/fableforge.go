// Package fableforgecmder
package fableforgecmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/fableforge/fableforge/cmd/fableforge/chat"
	configcmder "github.com/fableforge/fableforge/cmd/fableforge/config"
	servecmder "github.com/fableforge/fableforge/cmd/fableforge/serve"
	versioncmder "github.com/fableforge/fableforge/cmd/version"
)

const fableforgeLongDesc string = `Fableforge is a conversational Game Master with campaign memory.

Run services using:
  fableforge serve     Run the Game Master API server
  fableforge chat      Play a campaign interactively
  fableforge config    Manage persistent configuration`

const fableforgeShortDesc string = "Fableforge - AI Game Master"

func NewFableforgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fableforge",
		Short: fableforgeShortDesc,
		Long:  fableforgeLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .fableforge directory location")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
