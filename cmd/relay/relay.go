// Package relaycmder provides the root relay command.
package relaycmder

import (
	"github.com/spf13/cobra"

	servecmder "github.com/zerouihq/relay/cmd/relay/serve"
	versioncmder "github.com/zerouihq/relay/cmd/version"
)

const relayLongDesc string = `Relay is the streaming chat relay between the editor extension and a local
Ollama server.

Run the server using:
  relay serve      Run the relay server
  relay version    Display build version`

const relayShortDesc string = "Relay - editor to Ollama streaming relay"

func NewRelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: relayShortDesc,
		Long:  relayLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
