// Package repl is the interactive prompt loop of the jukebox client: it asks
// for a request kind and the fields that kind needs, sends the request and
// prints the response.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/papercomputeco/jukebox/pkg/protocol"
)

// ErrInvalidRequest is returned for kinds the prompt loop does not know.
var ErrInvalidRequest = errors.New("invalid request")

// Doer sends one request. *client.Client implements it.
type Doer interface {
	Do(ctx context.Context, req *protocol.Request) (*protocol.Response, error)
}

// Session reads requests from in and prints their responses to out.
type Session struct {
	in      *bufio.Reader
	out     io.Writer
	doer    Doer
	printer *Printer
}

// New creates a session. printer may be nil for plain output.
func New(in io.Reader, out io.Writer, doer Doer, printer *Printer) *Session {
	if printer == nil {
		printer = NewPrinter(out, false)
	}
	return &Session{in: bufio.NewReader(in), out: out, doer: doer, printer: printer}
}

// Run loops until the input ends or ctx is cancelled. Malformed input is
// reported and the loop goes on; transport errors end it.
func (s *Session) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		req, err := s.ReadRequest()
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, errHelp):
			if err := s.printer.Help(); err != nil {
				return err
			}
			continue
		case err != nil:
			s.printer.Error(err)
			continue
		}

		resp, err := s.doer.Do(ctx, req)
		if err != nil {
			return err
		}
		s.printer.Response(resp)
	}
}

var errHelp = errors.New("help")

// ReadRequest prompts for one request.
func (s *Session) ReadRequest() (*protocol.Request, error) {
	kind, err := s.line("kind")
	if err != nil {
		return nil, err
	}
	if kind == "" {
		return s.ReadRequest()
	}
	if kind == "help" || kind == "?" {
		return nil, errHelp
	}

	req := &protocol.Request{Kind: protocol.Kind(kind)}
	fill, ok := prompts[req.Kind]
	if !ok {
		if _, known := req.Kind.Group(); known {
			return req, nil
		}
		return nil, ErrInvalidRequest
	}
	if err := fill(s, req); err != nil {
		return nil, err
	}
	return req, nil
}

var prompts = map[protocol.Kind]func(*Session, *protocol.Request) error{
	protocol.KindLs: func(s *Session, r *protocol.Request) error {
		dir, err := s.line("dir")
		r.Dir = &dir
		return err
	},
	protocol.KindMetadata: func(s *Session, r *protocol.Request) (err error) {
		if r.IDs, err = s.ids("ids"); err != nil {
			return err
		}
		r.Tags, err = s.list("tags")
		return err
	},
	protocol.KindSelect: func(s *Session, r *protocol.Request) (err error) {
		if r.Filters, err = s.filters(); err != nil {
			return err
		}
		n, err := s.count("n_comparators")
		if err != nil {
			return err
		}
		for range n {
			tag, err := s.line("tag")
			if err != nil {
				return err
			}
			r.Comparators = append(r.Comparators, protocol.ComparatorSpec{Tag: tag})
		}
		return nil
	},
	protocol.KindUnique: func(s *Session, r *protocol.Request) (err error) {
		if r.Tag, err = s.line("tag"); err != nil {
			return err
		}
		if r.Filters, err = s.filters(); err != nil {
			return err
		}
		n, err := s.count("n_group_by")
		if err != nil {
			return err
		}
		for range n {
			tag, err := s.line("tag")
			if err != nil {
				return err
			}
			r.GroupBy = append(r.GroupBy, tag)
		}
		return nil
	},
	protocol.KindAdd: func(s *Session, r *protocol.Request) (err error) {
		if r.IDs, err = s.ids("ids"); err != nil {
			return err
		}
		r.Pos, err = s.optionalPos("pos")
		return err
	},
	protocol.KindRemove: func(s *Session, r *protocol.Request) (err error) {
		r.IDs, err = s.ids("ids")
		return err
	},
	protocol.KindPlay: func(s *Session, r *protocol.Request) error {
		n, err := s.int("id")
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("id must not be negative")
		}
		id := uint32(n)
		r.ID = &id
		return nil
	},
	protocol.KindSetVol:    intField("volume", func(r *protocol.Request, v *int) { r.Volume = v }),
	protocol.KindChangeVol: intField("delta", func(r *protocol.Request, v *int) { r.Delta = v }),
	protocol.KindSeek:      intField("seconds", func(r *protocol.Request, v *int) { r.Seconds = v }),
	protocol.KindSpeed:     intField("speed", func(r *protocol.Request, v *int) { r.Speed = v }),
	protocol.KindEnable:    deviceField,
	protocol.KindDisable:   deviceField,
	protocol.KindListSongs: func(s *Session, r *protocol.Request) (err error) {
		r.Playlist, err = s.line("playlist")
		return err
	},
	protocol.KindAddPlaylist: func(s *Session, r *protocol.Request) (err error) {
		if r.Playlist, err = s.line("playlist"); err != nil {
			return err
		}
		r.Song, err = s.line("song")
		return err
	},
	protocol.KindRemovePlaylist: func(s *Session, r *protocol.Request) (err error) {
		if r.Playlist, err = s.line("playlist"); err != nil {
			return err
		}
		pos, err := s.int("pos")
		r.Pos = &pos
		return err
	},
	protocol.KindLoad: func(s *Session, r *protocol.Request) (err error) {
		if r.Playlist, err = s.line("playlist"); err != nil {
			return err
		}
		start, err := s.int("start")
		if err != nil {
			return err
		}
		end, err := s.int("end")
		if err != nil {
			return err
		}
		if start >= 0 && end >= 0 {
			r.Range = &[2]int{start, end}
		}
		r.Pos, err = s.optionalPos("pos")
		return err
	},
	protocol.KindSave: func(s *Session, r *protocol.Request) (err error) {
		r.Path, err = s.line("path")
		return err
	},
}

func init() {
	prompts["addqueue"] = prompts[protocol.KindAdd]
	prompts["removequeue"] = prompts[protocol.KindRemove]
}

func intField(name string, set func(*protocol.Request, *int)) func(*Session, *protocol.Request) error {
	return func(s *Session, r *protocol.Request) error {
		v, err := s.int(name)
		if err != nil {
			return err
		}
		set(r, &v)
		return nil
	}
}

func deviceField(s *Session, r *protocol.Request) (err error) {
	r.Device, err = s.line("device")
	return err
}

// line prints "name: " and reads one trimmed line.
func (s *Session) line(name string) (string, error) {
	fmt.Fprintf(s.out, "%s: ", name)
	text, err := s.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || text == "") {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (s *Session) int(name string) (int, error) {
	text, err := s.line(name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", name, text)
	}
	return n, nil
}

func (s *Session) count(name string) (int, error) {
	n, err := s.int(name)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%s must not be negative", name)
	}
	return n, nil
}

// optionalPos reads a position; negative values mean "no position".
func (s *Session) optionalPos(name string) (*int, error) {
	n, err := s.int(name)
	if err != nil || n < 0 {
		return nil, err
	}
	return &n, nil
}

func (s *Session) list(name string) ([]string, error) {
	text, err := s.line(name)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, part := range strings.Split(text, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out, nil
}

func (s *Session) ids(name string) ([]uint32, error) {
	parts, err := s.list(name)
	if err != nil {
		return nil, err
	}
	ids := make([]uint32, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not an id", name, p)
		}
		ids = append(ids, uint32(n))
	}
	return ids, nil
}

func (s *Session) filters() ([]protocol.FilterSpec, error) {
	n, err := s.count("n_filters")
	if err != nil {
		return nil, err
	}
	out := make([]protocol.FilterSpec, 0, n)
	for range n {
		tag, err := s.line("tag")
		if err != nil {
			return nil, err
		}
		re, err := s.line("regex")
		if err != nil {
			return nil, err
		}
		out = append(out, protocol.FilterSpec{Kind: "regex", Tag: tag, Regex: re})
	}
	return out, nil
}
