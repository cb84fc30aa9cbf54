package protocol_test

import (
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/jukebox/pkg/protocol"
)

var _ = Describe("Response", func() {
	It("flattens items next to the status", func() {
		data, err := json.Marshal(protocol.OK().With("new_files", 3))
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(MatchJSON(`{"status": "ok", "new_files": 3}`))
	})

	It("renders errors with a reason", func() {
		data, err := json.Marshal(protocol.Err(errors.New("boom")).With("ignored", 1))
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(MatchJSON(`{"status": "err", "reason": "boom"}`))
	})

	It("does not let items override the status", func() {
		data, _ := json.Marshal(protocol.OK().With("status", "err"))
		Expect(data).To(MatchJSON(`{"status": "ok"}`))
	})

	It("decodes what it encodes", func() {
		var resp protocol.Response
		Expect(json.Unmarshal([]byte(`{"status": "ok", "ids": [1, 2]}`), &resp)).To(Succeed())
		Expect(resp.IsOK()).To(BeTrue())
		Expect(resp.Items).To(HaveKeyWithValue("ids", []any{json.Number("1"), json.Number("2")}))

		Expect(json.Unmarshal([]byte(`{"status": "err", "reason": "nope"}`), &resp)).To(Succeed())
		Expect(resp.IsOK()).To(BeFalse())
		Expect(resp.Reason).To(Equal("nope"))

		Expect(json.Unmarshal([]byte(`{"status": "maybe"}`), &resp)).NotTo(Succeed())
	})
})

var _ = Describe("Differ", func() {
	var d protocol.Differ

	BeforeEach(func() {
		d = protocol.Differ{}
	})

	It("returns the full state first", func() {
		out, err := d.Diff(map[string]any{"volume": 50, "state": 1})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(map[string]any{"volume": 50, "state": 1}))
	})

	It("returns only changed items afterwards", func() {
		_, _ = d.Diff(map[string]any{"volume": 50, "state": 1, "path": "a.mp3"})
		out, err := d.Diff(map[string]any{"volume": 60, "state": 1})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(map[string]any{"volume": 60, "path": nil}))

		out, _ = d.Diff(map[string]any{"volume": 60, "state": 1})
		Expect(out).To(BeEmpty())
	})

	It("starts over after Reset", func() {
		_, _ = d.Diff(map[string]any{"volume": 50})
		d.Reset()
		out, _ := d.Diff(map[string]any{"volume": 50})
		Expect(out).To(HaveKey("volume"))
	})
})
