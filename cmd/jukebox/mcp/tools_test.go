package mcpcmder

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/jukebox/pkg/protocol"
)

// fakeConn is a two-song library with an empty queue.
type fakeConn struct {
	kinds []protocol.Kind
	added []uint32
	raw   []string
}

func (f *fakeConn) Do(_ context.Context, req *protocol.Request) (*protocol.Response, error) {
	f.kinds = append(f.kinds, req.Kind)
	switch req.Kind {
	case protocol.KindSelect:
		if req.Filter == "artist==nobody" {
			return protocol.OK().With("ids", []uint32{}), nil
		}
		if req.Filter == "artist==(" {
			return protocol.Errf("syntax error"), nil
		}
		return protocol.OK().With("ids", []uint32{1, 2}), nil
	case protocol.KindMetadata:
		values := make([]map[string]string, len(req.IDs))
		for i := range req.IDs {
			values[i] = map[string]string{req.Tags[0]: "Queen"}
		}
		return protocol.OK().With("values", values), nil
	case protocol.KindAdd:
		f.added = append(f.added, req.IDs...)
		return protocol.OK(), nil
	case protocol.KindCurrent:
		return protocol.OK().With("current", nil), nil
	case protocol.KindState:
		return protocol.OK().With("state", 0).With("volume", 50), nil
	}
	return protocol.OK(), nil
}

func (f *fakeConn) DoRaw(_ context.Context, payload []byte) (*protocol.Response, error) {
	f.raw = append(f.raw, string(payload))
	return protocol.OK().With("volume", 40), nil
}

var _ = Describe("MCP tools", func() {
	var (
		ctx     context.Context
		conn    *fakeConn
		session *mcp.ClientSession
	)

	BeforeEach(func() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(context.Background())
		DeferCleanup(cancel)

		conn = &fakeConn{}
		serverTransport, clientTransport := mcp.NewInMemoryTransports()
		_, err := NewServer(conn, "0.1.0").Connect(ctx, serverTransport, nil)
		Expect(err).NotTo(HaveOccurred())

		c := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "0.0.1"}, nil)
		session, err = c.Connect(ctx, clientTransport, nil)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(session.Close)
	})

	call := func(name string, args map[string]any) (map[string]any, bool) {
		res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Content).To(HaveLen(1))
		text, ok := res.Content[0].(*mcp.TextContent)
		Expect(ok).To(BeTrue())

		var out map[string]any
		Expect(json.Unmarshal([]byte(text.Text), &out)).To(Succeed())
		return out, res.IsError
	}

	It("lists the tools", func() {
		res, err := session.ListTools(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		var names []string
		for _, t := range res.Tools {
			names = append(names, t.Name)
		}
		Expect(names).To(ConsistOf("jukebox_request", "jukebox_status", "jukebox_search", "jukebox_enqueue"))
	})

	It("forwards raw requests", func() {
		out, isErr := call("jukebox_request", map[string]any{"request": map[string]any{"kind": "setvol", "volume": 40}})
		Expect(isErr).To(BeFalse())
		Expect(out).To(HaveKeyWithValue("volume", BeEquivalentTo(40)))
		Expect(conn.raw).To(HaveLen(1))
		Expect(conn.raw[0]).To(MatchJSON(`{"kind":"setvol","volume":40}`))
	})

	It("resets the baseline before reading the state", func() {
		out, _ := call("jukebox_status", map[string]any{})
		Expect(out).To(HaveKeyWithValue("status", "ok"))
		Expect(conn.kinds).To(Equal([]protocol.Kind{protocol.KindReset, protocol.KindState}))
	})

	It("searches with select and metadata", func() {
		out, isErr := call("jukebox_search", map[string]any{"filter": "artist==Queen", "tags": []string{"artist"}})
		Expect(isErr).To(BeFalse())
		Expect(out["ids"]).To(HaveLen(2))
		Expect(out["values"]).To(ContainElement(HaveKeyWithValue("artist", "Queen")))
	})

	It("reports daemon errors as tool errors", func() {
		out, isErr := call("jukebox_search", map[string]any{"filter": "artist==("})
		Expect(isErr).To(BeTrue())
		Expect(out).To(HaveKeyWithValue("reason", "syntax error"))
	})

	It("enqueues matches and starts playback", func() {
		out, isErr := call("jukebox_enqueue", map[string]any{"filter": "", "play": true})
		Expect(isErr).To(BeFalse())
		Expect(out).To(HaveKeyWithValue("added", BeEquivalentTo(2)))
		Expect(conn.added).To(Equal([]uint32{1, 2}))
		Expect(conn.kinds).To(ContainElement(protocol.KindNext))
	})

	It("adds nothing when nothing matches", func() {
		out, _ := call("jukebox_enqueue", map[string]any{"filter": "artist==nobody"})
		Expect(out).To(HaveKeyWithValue("added", BeEquivalentTo(0)))
		Expect(conn.kinds).NotTo(ContainElement(protocol.KindAdd))
	})
})
