package state_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/jukebox/pkg/queue"
	"github.com/papercomputeco/jukebox/pkg/state"
)

var _ = Describe("state file", func() {
	var path string

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), "nested", "state.json")
	})

	It("defaults when the file is missing", func() {
		s, err := state.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(Equal(state.Default()))
		Expect(s.Volume).To(Equal(50))
	})

	It("round trips", func() {
		saved := state.State{
			Volume:  20,
			Speed:   150,
			Gapless: true,
			Mode:    "random",
			Devices: []string{"default"},
			Queue:   []queue.Entry{{ID: 3, SongID: 7, Path: "a.mp3"}},
		}
		Expect(state.Save(path, saved)).To(Succeed())

		loaded, err := state.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(Equal(saved))
	})

	It("fills missing fields with defaults", func() {
		Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
		Expect(os.WriteFile(path, []byte(`{"volume": 10}`), 0o644)).To(Succeed())

		loaded, err := state.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Volume).To(Equal(10))
		Expect(loaded.Speed).To(Equal(100))
	})

	It("reports corrupt files", func() {
		Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
		Expect(os.WriteFile(path, []byte(`{`), 0o644)).To(Succeed())

		_, err := state.Load(path)
		Expect(err).To(HaveOccurred())
	})
})
