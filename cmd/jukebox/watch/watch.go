package watchcmder

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/jukebox/cmd/jukebox/settings"
	"github.com/papercomputeco/jukebox/pkg/client"
)

const watchLongDesc string = `Show what the jukebox daemon is playing and control it from the keyboard.

The screen is refreshed by polling the daemon's state.

Examples:
  jukebox watch
  jukebox watch --interval 250ms`

const watchShortDesc string = "Live view of the jukebox daemon"

type watchCommander struct {
	interval time.Duration
}

func NewWatchCmd() *cobra.Command {
	cmder := &watchCommander{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: watchShortDesc,
		Long:  watchLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, err := settings.Addr(cmd)
			if err != nil {
				return err
			}
			return cmder.run(cmd, addr)
		},
	}

	cmd.Flags().DurationVarP(&cmder.interval, "interval", "i", time.Second, "Polling interval")

	return cmd
}

func (c *watchCommander) run(cmd *cobra.Command, addr string) error {
	conn, err := client.NewRedialer(cmd.Context(), addr)
	if err != nil {
		return fmt.Errorf("could not connect to %s: %w", addr, err)
	}
	defer conn.Close()

	p := tea.NewProgram(newModel(conn, c.interval),
		tea.WithContext(cmd.Context()),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
		tea.WithAltScreen(),
	)
	_, err = p.Run()
	return err
}
