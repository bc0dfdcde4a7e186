// Package configcmder provides the config command for managing persistent
// fableforge configuration stored in the .fableforge/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent fableforge configuration.

Configuration is stored as config.toml in the .fableforge/ directory and
provides default values for command flags. CLI flags always take precedence
over config file values.

Keys use dotted notation matching the TOML section structure:
  storage.sqlite_path, api.listen, client.api_target,
  generation.provider, generation.target, generation.model,
  generation.assistant_id, generation.poll_interval_ms, generation.turn_timeout_s,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  memory.provider, memory.sqlite_path,
  events.provider, events.brokers, events.topic,
  speech.enabled, speech.target, speech.model, speech.voice,
  narrator.preamble, narrator.top_k

Use subcommands to get, set, or list configuration values:
  fableforge config set <key> <value>    Set a configuration value
  fableforge config get <key>            Get a configuration value
  fableforge config list                 List all configuration values

Examples:
  fableforge config set generation.provider openai
  fableforge config set embedding.model nomic-embed-text
  fableforge config get generation.model
  fableforge config list`

const configShortDesc string = "Manage persistent fableforge configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
