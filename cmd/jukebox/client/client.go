package clientcmder

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/jukebox/cmd/jukebox/settings"
	"github.com/papercomputeco/jukebox/pkg/client"
	"github.com/papercomputeco/jukebox/pkg/repl"
)

const clientLongDesc string = `Open an interactive session with the jukebox daemon.

Prompts for a request kind and then for each field that kind needs. Type
"help" at the kind prompt for the list of kinds. End the session with EOF
(Ctrl-D).

Examples:
  jukebox client
  jukebox client --addr 127.0.0.1:4000 --no-color`

const clientShortDesc string = "Interactive client for the jukebox daemon"

type clientCommander struct {
	noColor bool
}

func NewClientCmd() *cobra.Command {
	cmder := &clientCommander{}

	cmd := &cobra.Command{
		Use:   "client",
		Short: clientShortDesc,
		Long:  clientLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, err := settings.Addr(cmd)
			if err != nil {
				return err
			}
			return cmder.run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), addr)
		},
	}

	cmd.Flags().BoolVar(&cmder.noColor, "no-color", false, "Disable coloured output")

	return cmd
}

func (c *clientCommander) run(ctx context.Context, in io.Reader, out io.Writer, addr string) error {
	conn, err := client.Dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("could not connect to %s: %w", addr, err)
	}
	defer conn.Close()

	printer := repl.NewPrinter(out, c.color(out))
	printer.Greeting(conn.Greeting())

	return repl.New(in, out, conn, printer).Run(ctx)
}

// color reports whether out is a terminal and colour was not turned off.
func (c *clientCommander) color(out io.Writer) bool {
	if c.noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
