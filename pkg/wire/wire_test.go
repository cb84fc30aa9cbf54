package wire_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/jukebox/pkg/wire"
)

var _ = Describe("Framing", func() {
	Describe("WriteFrame", func() {
		It("prefixes the payload with a big-endian length", func() {
			var buf bytes.Buffer
			Expect(wire.WriteFrame(&buf, []byte(`{"kind":"next"}`))).To(Succeed())

			raw := buf.Bytes()
			Expect(raw[:4]).To(Equal([]byte{0, 0, 0, 15}))
			Expect(string(raw[4:])).To(Equal(`{"kind":"next"}`))
		})

		It("writes an empty frame as a bare header", func() {
			var buf bytes.Buffer
			Expect(wire.WriteFrame(&buf, nil)).To(Succeed())
			Expect(buf.Bytes()).To(Equal([]byte{0, 0, 0, 0}))
		})

		It("rejects payloads above the maximum frame size", func() {
			var buf bytes.Buffer
			err := wire.WriteFrame(&buf, make([]byte, wire.MaxFrameSize+1))
			Expect(errors.Is(err, wire.ErrFrameTooLarge)).To(BeTrue())
			Expect(buf.Len()).To(BeZero())
		})
	})

	Describe("ReadFrame", func() {
		It("reads back consecutive frames", func() {
			var buf bytes.Buffer
			Expect(wire.WriteFrame(&buf, []byte("first"))).To(Succeed())
			Expect(wire.WriteFrame(&buf, []byte("second"))).To(Succeed())

			first, err := wire.ReadFrame(&buf)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(first)).To(Equal("first"))

			second, err := wire.ReadFrame(&buf)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(second)).To(Equal("second"))

			_, err = wire.ReadFrame(&buf)
			Expect(err).To(MatchError(io.EOF))
		})

		It("reports a truncated payload as unexpected EOF", func() {
			buf := bytes.NewBuffer([]byte{0, 0, 0, 10, 'a', 'b'})
			_, err := wire.ReadFrame(buf)
			Expect(err).To(MatchError(io.ErrUnexpectedEOF))
		})

		It("reports a truncated header as unexpected EOF", func() {
			buf := bytes.NewBuffer([]byte{0, 0})
			_, err := wire.ReadFrame(buf)
			Expect(err).To(MatchError(io.ErrUnexpectedEOF))
		})

		It("refuses oversized length prefixes without reading the body", func() {
			header := make([]byte, 4)
			binary.BigEndian.PutUint32(header, wire.MaxFrameSize+1)
			_, err := wire.ReadFrame(bytes.NewReader(header))
			Expect(errors.Is(err, wire.ErrFrameTooLarge)).To(BeTrue())
		})
	})

	Describe("JSON helpers", func() {
		It("decodes what WriteJSON encoded", func() {
			var buf bytes.Buffer
			Expect(wire.WriteJSON(&buf, map[string]string{"version": "1.0.0"})).To(Succeed())

			var greeting map[string]string
			Expect(wire.ReadJSON(&buf, &greeting)).To(Succeed())
			Expect(greeting).To(HaveKeyWithValue("version", "1.0.0"))
		})

		It("fails on a frame that is not JSON", func() {
			var buf bytes.Buffer
			Expect(wire.WriteFrame(&buf, []byte("raw text"))).To(Succeed())

			var v map[string]any
			Expect(wire.ReadJSON(&buf, &v)).To(HaveOccurred())
		})
	})
})
