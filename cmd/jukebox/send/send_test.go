package sendcmder

import (
	"bytes"
	"context"
	"net"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/jukebox/pkg/protocol"
	"github.com/papercomputeco/jukebox/server"
)

type volumeHandler struct{}

func (volumeHandler) Do(_ context.Context, req *protocol.Request) (*protocol.Response, error) {
	if req.Kind == protocol.KindVolume {
		return protocol.OK().With("volume", 50), nil
	}
	return protocol.Errf("nothing is playing"), nil
}

var _ = Describe("Send Command", func() {
	var addr string

	BeforeEach(func() {
		ctx, cancel := context.WithCancel(context.Background())
		DeferCleanup(cancel)

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		addr = ln.Addr().String()

		srv := server.New(server.Config{Version: "0.1.0"}, volumeHandler{}, zap.NewNop())
		go func() { _ = srv.Serve(ctx, ln) }()
	})

	It("prints ok responses", func() {
		var out bytes.Buffer
		cmder := &sendCommander{compact: true}
		Expect(cmder.run(context.Background(), &out, addr, []byte(`{"kind":"volume"}`))).To(Succeed())
		Expect(out.String()).To(MatchJSON(`{"status":"ok","volume":50}`))
	})

	It("fails on err responses after printing them", func() {
		var out bytes.Buffer
		cmder := &sendCommander{}
		err := cmder.run(context.Background(), &out, addr, []byte(`{"kind":"seek","seconds":5}`))
		Expect(err).To(MatchError(ErrResponse{Reason: "nothing is playing"}))
		Expect(out.String()).To(MatchJSON(`{"status":"err","reason":"nothing is playing"}`))
	})

	It("reports malformed requests from the daemon", func() {
		var out bytes.Buffer
		err := (&sendCommander{}).run(context.Background(), &out, addr, []byte(`[1,2]`))
		Expect(err).To(MatchError(ContainSubstring("a request must be a JSON object")))
	})

	It("reads the request from stdin", func() {
		data, err := readPayload(strings.NewReader(`{"kind":"next"}`), []string{"-"})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(`{"kind":"next"}`))

		data, err = readPayload(strings.NewReader("ignored"), []string{`{"kind":"stop"}`})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(`{"kind":"stop"}`))

		_, err = readPayload(strings.NewReader("  \n"), nil)
		Expect(err).To(MatchError("empty request"))
	})
})
