package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	clientcmder "github.com/papercomputeco/jukebox/cmd/jukebox/client"
	configcmder "github.com/papercomputeco/jukebox/cmd/jukebox/configcmd"
	mcpcmder "github.com/papercomputeco/jukebox/cmd/jukebox/mcp"
	sendcmder "github.com/papercomputeco/jukebox/cmd/jukebox/send"
	servecmder "github.com/papercomputeco/jukebox/cmd/jukebox/serve"
	"github.com/papercomputeco/jukebox/cmd/jukebox/settings"
	watchcmder "github.com/papercomputeco/jukebox/cmd/jukebox/watch"
)

const rootLongDesc string = `jukebox is a music player daemon and its clients.

The daemon indexes a music directory and is remote-controlled over TCP with
length-prefixed JSON requests. The client subcommands talk to it.`

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "jukebox",
		Short:         "Music player daemon and clients",
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	settings.AddPersistentFlags(cmd)

	cmd.AddCommand(
		servecmder.NewServeCmd(),
		clientcmder.NewClientCmd(),
		sendcmder.NewSendCmd(),
		watchcmder.NewWatchCmd(),
		mcpcmder.NewMCPCmd(),
		configcmder.NewConfigCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the jukebox version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), settings.Version)
			},
		},
	)
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "jukebox:", err)
		os.Exit(1)
	}
}
