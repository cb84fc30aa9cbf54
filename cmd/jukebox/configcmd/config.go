package configcmder

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/jukebox/cmd/jukebox/settings"
	"github.com/papercomputeco/jukebox/pkg/config"
)

const configLongDesc string = `Print the effective configuration as TOML.

With --write the configuration is also saved to the config file path, which
is how a first jukebox.toml is usually created.

Examples:
  jukebox config
  jukebox config --write
  jukebox config --config ./jukebox.toml --write`

const configShortDesc string = "Print or write the effective configuration"

type configCommander struct {
	write bool
	force bool
}

func NewConfigCmd() *cobra.Command {
	cmder := &configCommander{}

	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().BoolVarP(&cmder.write, "write", "w", false, "Write the configuration to the config file")
	cmd.Flags().BoolVarP(&cmder.force, "force", "f", false, "Overwrite an existing config file")

	return cmd
}

func (c *configCommander) run(cmd *cobra.Command) error {
	cfg, err := settings.Load(cmd)
	if err != nil {
		return err
	}

	if err := config.Write(cmd.OutOrStdout(), cfg); err != nil {
		return fmt.Errorf("could not encode config: %w", err)
	}
	if !c.write {
		return nil
	}

	path, _ := cmd.Flags().GetString(settings.ConfigFlag)
	if path == "" {
		path = config.DefaultPath()
	}
	if _, err := os.Stat(path); err == nil && !c.force {
		return fmt.Errorf("%s already exists, use --force to overwrite it", path)
	}
	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("could not write config: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", path)
	return nil
}
