package client_test

import (
	"context"
	"encoding/json"
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/jukebox/pkg/client"
	"github.com/papercomputeco/jukebox/pkg/protocol"
	"github.com/papercomputeco/jukebox/pkg/wire"
)

// fakeDaemon greets, then answers every request with its kind echoed back.
// With silent set it never answers.
func fakeDaemon(silent bool) string {
	return slowDaemon(silent, 0)
}

// slowDaemon is fakeDaemon with the first reply on each connection held back
// by delay.
func slowDaemon(silent bool, delay time.Duration) string {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(ln.Close)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				_ = wire.WriteJSON(conn, protocol.Greeting{Version: "0.9.0"})
				first := true
				for {
					payload, err := wire.ReadFrame(conn)
					if err != nil {
						return
					}
					if silent {
						continue
					}
					if first && delay > 0 {
						time.Sleep(delay)
					}
					first = false
					var req map[string]any
					_ = json.Unmarshal(payload, &req)
					_ = wire.WriteJSON(conn, protocol.OK().With("echo", req["kind"]))
				}
			}()
		}
	}()
	return ln.Addr().String()
}

var _ = Describe("Client", func() {
	It("reads the greeting", func() {
		c, err := client.Dial(context.Background(), fakeDaemon(false))
		Expect(err).NotTo(HaveOccurred())
		defer c.Close()
		Expect(c.Greeting().Version).To(Equal("0.9.0"))
	})

	It("sends requests and decodes responses", func() {
		c, err := client.Dial(context.Background(), fakeDaemon(false))
		Expect(err).NotTo(HaveOccurred())
		defer c.Close()

		resp, err := c.Do(context.Background(), &protocol.Request{Kind: protocol.KindNext})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.IsOK()).To(BeTrue())
		Expect(resp.Items).To(HaveKeyWithValue("echo", "next"))

		resp, err = c.DoRaw(context.Background(), []byte(`{"kind":"state"}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Items).To(HaveKeyWithValue("echo", "state"))
	})

	It("gives up when the context expires", func() {
		c, err := client.Dial(context.Background(), fakeDaemon(true))
		Expect(err).NotTo(HaveOccurred())
		defer c.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_, err = c.Do(ctx, &protocol.Request{Kind: protocol.KindState})
		Expect(err).To(MatchError(context.DeadlineExceeded))
	})

	It("refuses further calls after an aborted exchange", func() {
		c, err := client.Dial(context.Background(), slowDaemon(false, 300*time.Millisecond))
		Expect(err).NotTo(HaveOccurred())
		defer c.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err = c.Do(ctx, &protocol.Request{Kind: protocol.KindUpdate})
		Expect(err).To(MatchError(context.DeadlineExceeded))

		// The late reply to update must never be taken for this answer.
		time.Sleep(400 * time.Millisecond)
		resp, err := c.Do(context.Background(), &protocol.Request{Kind: protocol.KindVolume})
		Expect(err).To(MatchError(client.ErrClosed))
		Expect(resp).To(BeNil())
		Expect(c.Close()).To(Succeed())
	})

	It("refuses calls after Close", func() {
		c, err := client.Dial(context.Background(), fakeDaemon(false))
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Close()).To(Succeed())
		_, err = c.Do(context.Background(), &protocol.Request{Kind: protocol.KindNext})
		Expect(err).To(MatchError(client.ErrClosed))
	})

	Describe("Redialer", func() {
		It("reconnects after an aborted exchange", func() {
			r, err := client.NewRedialer(context.Background(), slowDaemon(false, 300*time.Millisecond))
			Expect(err).NotTo(HaveOccurred())
			defer r.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			_, err = r.Do(ctx, &protocol.Request{Kind: protocol.KindUpdate})
			Expect(err).To(MatchError(context.DeadlineExceeded))

			// A fresh connection holds its first reply back too.
			resp, err := r.Do(context.Background(), &protocol.Request{Kind: protocol.KindVolume})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Items).To(HaveKeyWithValue("echo", "volume"))

			resp, err = r.DoRaw(context.Background(), []byte(`{"kind":"next"}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Items).To(HaveKeyWithValue("echo", "next"))
		})

		It("fails early for an address nobody listens on", func() {
			ln, err := net.Listen("tcp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())
			addr := ln.Addr().String()
			ln.Close()

			_, err = client.NewRedialer(context.Background(), addr)
			Expect(err).To(HaveOccurred())
		})
	})

	It("fails to dial a closed port", func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		addr := ln.Addr().String()
		ln.Close()

		_, err = client.Dial(context.Background(), addr)
		Expect(err).To(HaveOccurred())
	})
})
