package repl

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/papercomputeco/jukebox/pkg/protocol"
)

// Printer renders responses. Colour is only used when the output is a
// terminal and colour was not turned off.
type Printer struct {
	out   io.Writer
	color bool

	ok     lipgloss.Style
	err    lipgloss.Style
	key    lipgloss.Style
	prompt lipgloss.Style
}

// NewPrinter creates a printer writing to out.
func NewPrinter(out io.Writer, color bool) *Printer {
	r := lipgloss.NewRenderer(out)
	if !color {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Printer{
		out:    out,
		color:  color,
		ok:     r.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		err:    r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		key:    r.NewStyle().Foreground(lipgloss.Color("6")),
		prompt: r.NewStyle().Faint(true),
	}
}

// Greeting prints the server's greeting.
func (p *Printer) Greeting(g protocol.Greeting) {
	fmt.Fprintln(p.out, p.prompt.Render("connected to jukebox "+g.Version))
}

// Error prints a local error such as a malformed number.
func (p *Printer) Error(err error) {
	fmt.Fprintln(p.out, p.err.Render(err.Error()))
}

// Response prints a response: the status line, then one indented JSON
// value per item in key order.
func (p *Printer) Response(resp *protocol.Response) {
	if !resp.IsOK() {
		fmt.Fprintf(p.out, "%s %s\n", p.err.Render(protocol.StatusErr), resp.Reason)
		return
	}

	fmt.Fprintln(p.out, p.ok.Render(protocol.StatusOK))
	keys := make([]string, 0, len(resp.Items))
	for k := range resp.Items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		data, err := json.MarshalIndent(resp.Items[k], "  ", "  ")
		if err != nil {
			data = []byte(fmt.Sprint(resp.Items[k]))
		}
		fmt.Fprintf(p.out, "  %s: %s\n", p.key.Render(k), data)
	}
}

// Help prints the table of request kinds and the fields each one prompts for.
func (p *Printer) Help() error {
	style := "notty"
	if p.color {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return fmt.Errorf("creating help renderer: %w", err)
	}
	out, err := r.Render(HelpMarkdown())
	if err != nil {
		return fmt.Errorf("rendering help: %w", err)
	}
	_, err = io.WriteString(p.out, out)
	return err
}

var fieldHelp = map[protocol.Kind]string{
	protocol.KindLs:             "dir",
	protocol.KindMetadata:       "ids, tags",
	protocol.KindSelect:         "n_filters, (tag, regex)..., n_comparators, tag...",
	protocol.KindUnique:         "tag, n_filters, (tag, regex)..., n_group_by, tag...",
	protocol.KindAdd:            "ids, pos",
	protocol.KindRemove:         "ids",
	protocol.KindPlay:           "id",
	protocol.KindSetVol:         "volume",
	protocol.KindChangeVol:      "delta",
	protocol.KindSeek:           "seconds",
	protocol.KindSpeed:          "speed",
	protocol.KindEnable:         "device",
	protocol.KindDisable:        "device",
	protocol.KindListSongs:      "playlist",
	protocol.KindAddPlaylist:    "playlist, song",
	protocol.KindRemovePlaylist: "playlist, pos",
	protocol.KindLoad:           "playlist, start, end, pos",
	protocol.KindSave:           "path",
}

var groupNames = map[protocol.Group]string{
	protocol.GroupLibrary:  "library",
	protocol.GroupDevice:   "device",
	protocol.GroupPlayback: "playback",
	protocol.GroupPlaylist: "playlist",
	protocol.GroupQueue:    "queue",
	protocol.GroupStatus:   "status",
}

// HelpMarkdown returns the help text as markdown.
func HelpMarkdown() string {
	var b strings.Builder
	b.WriteString("# jukebox requests\n\n")
	b.WriteString("Type a kind at the `kind:` prompt, then answer its prompts. ")
	b.WriteString("Lists are comma-separated; a negative `pos`, `start` or `end` leaves it out.\n\n")
	b.WriteString("| group | kind | prompts |\n|---|---|---|\n")
	kinds := protocol.Kinds()
	sort.SliceStable(kinds, func(i, j int) bool {
		gi, _ := kinds[i].Group()
		gj, _ := kinds[j].Group()
		return gi < gj
	})
	for _, k := range kinds {
		g, _ := k.Group()
		fields := fieldHelp[k]
		if fields == "" {
			fields = "-"
		}
		fmt.Fprintf(&b, "| %s | `%s` | %s |\n", groupNames[g], k, fields)
	}
	return b.String()
}
