// Package settings holds what the jukebox subcommands share: the version,
// the persistent flags and config file resolution.
package settings

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/jukebox/pkg/config"
)

// Version is announced in the greeting frame. Overridden at build time with
// -ldflags "-X github.com/papercomputeco/jukebox/cmd/jukebox/settings.Version=...".
var Version = "0.1.0"

const (
	ConfigFlag = "config"
	DebugFlag  = "debug"
	AddrFlag   = "addr"
)

// AddPersistentFlags registers the flags every subcommand understands.
func AddPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP(ConfigFlag, "c", "", "Path to jukebox.toml (default: $XDG_CONFIG_HOME/jukebox/jukebox.toml)")
	cmd.PersistentFlags().Bool(DebugFlag, false, "Enable debug logging")
	cmd.PersistentFlags().StringP(AddrFlag, "a", "", "Daemon address (default: server.listen from the config)")
}

// Load resolves and loads the config file named by --config, then applies
// --debug.
func Load(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString(ConfigFlag)
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}

	if cmd.Flags().Changed(DebugFlag) {
		cfg.Log.Debug, _ = cmd.Flags().GetBool(DebugFlag)
	}
	return cfg, nil
}

// Addr is the daemon address a client subcommand should dial: --addr, or the
// configured listen address.
func Addr(cmd *cobra.Command) (string, error) {
	if addr, _ := cmd.Flags().GetString(AddrFlag); addr != "" {
		return addr, nil
	}
	cfg, err := Load(cmd)
	if err != nil {
		return "", err
	}
	return cfg.Server.Listen, nil
}
