package sendcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/jukebox/cmd/jukebox/settings"
	"github.com/papercomputeco/jukebox/pkg/client"
	"github.com/papercomputeco/jukebox/pkg/protocol"
)

const sendLongDesc string = `Send one raw JSON request to the jukebox daemon and print the response.

The request is taken from the argument, or read from stdin when the argument
is "-" or missing. The exit status is non-zero for err responses.

Examples:
  jukebox send '{"kind":"state"}'
  jukebox send '{"kind":"add","paths":["rock/a.mp3"]}'
  echo '{"kind":"next"}' | jukebox send`

const sendShortDesc string = "Send one raw request to the jukebox daemon"

type sendCommander struct {
	compact bool
}

// ErrResponse is returned when the daemon answers with an err response.
type ErrResponse struct {
	Reason string
}

func (e ErrResponse) Error() string {
	return "daemon answered: " + e.Reason
}

func NewSendCmd() *cobra.Command {
	cmder := &sendCommander{}

	cmd := &cobra.Command{
		Use:   "send [request-json]",
		Short: sendShortDesc,
		Long:  sendLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := settings.Addr(cmd)
			if err != nil {
				return err
			}
			payload, err := readPayload(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			return cmder.run(cmd.Context(), cmd.OutOrStdout(), addr, payload)
		},
	}

	cmd.Flags().BoolVar(&cmder.compact, "compact", false, "Print the response on one line")

	return cmd
}

func readPayload(in io.Reader, args []string) ([]byte, error) {
	if len(args) == 1 && args[0] != "-" {
		return []byte(args[0]), nil
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("could not read request: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, fmt.Errorf("empty request")
	}
	return data, nil
}

func (c *sendCommander) run(ctx context.Context, out io.Writer, addr string, payload []byte) error {
	conn, err := client.Dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("could not connect to %s: %w", addr, err)
	}
	defer conn.Close()

	resp, err := conn.DoRaw(ctx, payload)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if err := c.print(out, resp); err != nil {
		return err
	}
	if !resp.IsOK() {
		return ErrResponse{Reason: resp.Reason}
	}
	return nil
}

func (c *sendCommander) print(out io.Writer, resp *protocol.Response) error {
	var (
		data []byte
		err  error
	)
	if c.compact {
		data, err = json.Marshal(resp)
	} else {
		data, err = json.MarshalIndent(resp, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("could not encode response: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
