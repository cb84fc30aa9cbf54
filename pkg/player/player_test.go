package player_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Player", func() {
	var (
		root string
		h    *harness
	)

	BeforeEach(func() {
		root = GinkgoT().TempDir()
		touch(root, "alpha/1.mp3", "alpha/2.mp3", "beta/3.flac")
		h = newHarness(root, filepath.Join(root, "state.json"))
		DeferCleanup(func() {
			if h != nil {
				h.stop()
			}
		})
	})

	state := func() map[string]any {
		return h.ok(`{"kind": "state"}`)
	}

	Describe("library requests", func() {
		It("selects ids", func() {
			Expect(h.ok(`{"kind": "select", "filter": "artist==alpha"}`)).To(HaveKeyWithValue("ids", []any{1.0, 2.0}))
		})

		It("lists directories", func() {
			items := h.ok(`{"kind": "ls", "dir": "beta"}`)
			Expect(items["files"]).To(Equal([]any{map[string]any{"id": 3.0, "path": "beta/3.flac"}}))
		})

		It("reads metadata", func() {
			items := h.ok(`{"kind": "metadata", "ids": [3, 9], "tags": ["artist", "mood"]}`)
			Expect(items["values"]).To(Equal([]any{map[string]any{"artist": "beta", "mood": nil}, nil}))
		})

		It("groups unique values", func() {
			items := h.ok(`{"kind": "unique", "tag": "tracktitle", "group_by": ["artist"]}`)
			Expect(items["values"]).To(HaveLen(2))
		})

		It("updates", func() {
			touch(root, "gamma/4.ogg")
			Expect(h.ok(`{"kind": "update"}`)).To(HaveKeyWithValue("new_files", 1.0))
		})

		It("reports bad tags", func() {
			resp := h.do(`{"kind": "metadata", "ids": [1], "tags": ["colour"]}`)
			Expect(resp.Reason).To(Equal("invalid tag name `colour`"))
		})
	})

	Describe("queue", func() {
		It("adds by id and by path", func() {
			h.ok(`{"kind": "add", "ids": [3]}`)
			h.ok(`{"kind": "addqueue", "paths": ["alpha/1.mp3"], "pos": 0}`)

			Expect(h.ok(`{"kind": "queue"}`)["queue"]).To(Equal([]any{
				map[string]any{"id": 2.0, "song_id": 1.0, "path": "alpha/1.mp3"},
				map[string]any{"id": 1.0, "song_id": 3.0, "path": "beta/3.flac"},
			}))
		})

		It("reports songs that are not in the library and adds the rest", func() {
			resp := h.do(`{"kind": "add", "paths": ["nope.mp3", "alpha/2.mp3"]}`)
			Expect(resp.Reason).To(Equal("file(s) `nope.mp3` not found in the database"))
			Expect(h.ok(`{"kind": "queue"}`)["queue"]).To(HaveLen(1))

			resp = h.do(`{"kind": "add", "ids": [7]}`)
			Expect(resp.Reason).To(Equal("song(s) with id(s) `7` not found in the database"))
		})

		It("plays a queue entry", func() {
			h.ok(`{"kind": "add", "ids": [1, 2, 3]}`)
			h.ok(`{"kind": "play", "id": 2}`)

			s := state()
			Expect(s).To(HaveKeyWithValue("state", 1.0))
			Expect(s).To(HaveKeyWithValue("id", 2.0))
			Expect(s).To(HaveKeyWithValue("path", "alpha/2.mp3"))
			Expect(s).To(HaveKeyWithValue("duration", 10.0))

			Expect(h.do(`{"kind": "play", "id": 42}`).Reason).To(Equal("song with queue id `42` not found"))
		})

		It("advances when a song ends and stops after the last one", func() {
			h.ok(`{"kind": "add", "ids": [1, 2]}`)
			h.ok(`{"kind": "next"}`)
			Expect(state()).To(HaveKeyWithValue("id", 1.0))

			h.clock.Advance(10 * time.Second)
			Eventually(state).Should(HaveKeyWithValue("id", 2.0))

			h.clock.Advance(10 * time.Second)
			Eventually(state).Should(HaveKeyWithValue("state", 0.0))
			Expect(state()).NotTo(HaveKey("id"))
		})

		It("stops after the current song in single mode", func() {
			h.ok(`{"kind": "add", "ids": [1, 2]}`)
			h.ok(`{"kind": "single"}`)
			h.ok(`{"kind": "play", "id": 1}`)

			h.clock.Advance(10 * time.Second)
			Eventually(state).Should(HaveKeyWithValue("state", 0.0))
			Expect(state()).To(HaveKeyWithValue("mode", "single"))
			Expect(state()).To(HaveKeyWithValue("id", 1.0))
		})

		It("skips songs that cannot be played", func() {
			h.ok(`{"kind": "add", "ids": [1, 2, 3]}`)
			Expect(os.Remove(filepath.Join(root, "alpha", "2.mp3"))).To(Succeed())

			h.ok(`{"kind": "play", "id": 1}`)
			h.ok(`{"kind": "next"}`)
			Expect(state()).To(HaveKeyWithValue("id", 3.0))
		})

		It("walks backwards", func() {
			h.ok(`{"kind": "add", "ids": [1, 2]}`)
			h.ok(`{"kind": "previous"}`)
			Expect(state()).To(HaveKeyWithValue("id", 2.0))
			h.ok(`{"kind": "previous"}`)
			Expect(state()).To(HaveKeyWithValue("id", 1.0))
			h.ok(`{"kind": "previous"}`)
			Expect(state()).To(HaveKeyWithValue("state", 0.0))
		})

		It("stops when the current entry is removed", func() {
			h.ok(`{"kind": "add", "ids": [1, 2]}`)
			h.ok(`{"kind": "play", "id": 1}`)
			h.ok(`{"kind": "remove", "ids": [2]}`)
			Expect(state()).To(HaveKeyWithValue("state", 1.0))
			h.ok(`{"kind": "removequeue", "ids": [1]}`)
			Expect(state()).To(HaveKeyWithValue("state", 0.0))
		})

		It("clears", func() {
			h.ok(`{"kind": "add", "ids": [1, 2]}`)
			h.ok(`{"kind": "play", "id": 1}`)
			h.ok(`{"kind": "clear"}`)
			Expect(h.ok(`{"kind": "queue"}`)["queue"]).To(BeEmpty())
			Expect(h.ok(`{"kind": "current"}`)).To(HaveKeyWithValue("current", BeNil()))
		})

		It("switches modes", func() {
			h.ok(`{"kind": "random"}`)
			Expect(state()).To(HaveKeyWithValue("mode", "random"))
			h.ok(`{"kind": "sequential"}`)
			Expect(state()).To(HaveKeyWithValue("mode", "sequential"))
		})
	})

	Describe("playback", func() {
		BeforeEach(func() {
			h.ok(`{"kind": "add", "ids": [1]}`)
			h.ok(`{"kind": "play", "id": 1}`)
		})

		It("pauses, resumes and toggles", func() {
			h.ok(`{"kind": "pause"}`)
			Expect(state()).To(HaveKeyWithValue("state", 2.0))
			h.ok(`{"kind": "resume"}`)
			Expect(state()).To(HaveKeyWithValue("state", 1.0))
			h.ok(`{"kind": "toggle"}`)
			Expect(state()).To(HaveKeyWithValue("state", 2.0))
		})

		It("seeks and reports elapsed time", func() {
			h.ok(`{"kind": "seek", "seconds": 4}`)
			h.clock.Advance(time.Second)
			Expect(h.ok(`{"kind": "elapsed"}`)).To(Equal(map[string]any{"elapsed": 5.0, "duration": 10.0}))
		})

		It("changes volume and speed", func() {
			h.ok(`{"kind": "setvol", "volume": 80}`)
			h.ok(`{"kind": "changevol", "delta": 40}`)
			Expect(h.ok(`{"kind": "volume"}`)).To(HaveKeyWithValue("volume", 100.0))

			h.ok(`{"kind": "speed", "speed": 150}`)
			Expect(state()).To(HaveKeyWithValue("speed", 150.0))
			Expect(h.do(`{"kind": "speed", "speed": 5}`).Reason).To(ContainSubstring("speed must be between"))
		})

		It("toggles gapless", func() {
			h.ok(`{"kind": "gapless"}`)
			Expect(state()).To(HaveKeyWithValue("gapless", true))
		})

		It("stops and forgets the current entry", func() {
			h.ok(`{"kind": "stop"}`)
			s := state()
			Expect(s).To(HaveKeyWithValue("state", 0.0))
			Expect(s).NotTo(HaveKey("id"))
			Expect(s).NotTo(HaveKey("elapsed"))
		})
	})

	Describe("devices", func() {
		It("lists, enables and disables", func() {
			h.ok(`{"kind": "enable", "device": "spare"}`)
			h.ok(`{"kind": "disable", "device": "default"}`)
			Expect(h.ok(`{"kind": "listdev"}`)["devices"]).To(Equal([]any{
				map[string]any{"device": "default", "enabled": false},
				map[string]any{"device": "spare", "enabled": true},
			}))
			Expect(h.do(`{"kind": "enable", "device": "hdmi"}`).Reason).To(Equal("audio device `hdmi` unavailable"))
		})
	})

	Describe("playlists", func() {
		It("saves the queue and loads it back", func() {
			h.ok(`{"kind": "add", "ids": [1, 2, 3]}`)
			h.ok(`{"kind": "save", "path": "mix"}`)
			Expect(h.ok(`{"kind": "playlists"}`)).To(HaveKeyWithValue("playlists", []any{"mix"}))
			Expect(h.ok(`{"kind": "listsongs", "playlist": "mix"}`)["songs"]).To(HaveLen(3))

			h.ok(`{"kind": "clear"}`)
			h.ok(`{"kind": "load", "playlist": "mix", "range": [1, 5]}`)
			h.ok(`{"kind": "load", "playlist": "mix", "range": [0, 0], "pos": 0}`)
			queue := h.ok(`{"kind": "queue"}`)["queue"].([]any)
			paths := []any{}
			for _, e := range queue {
				paths = append(paths, e.(map[string]any)["path"])
			}
			Expect(paths).To(Equal([]any{"alpha/1.mp3", "alpha/2.mp3", "beta/3.flac"}))
		})

		It("edits playlists", func() {
			h.ok(`{"kind": "addplaylist", "playlist": "p", "song": "beta/3.flac"}`)
			h.ok(`{"kind": "addplaylist", "playlist": "p", "song": "alpha/1.mp3"}`)
			h.ok(`{"kind": "removeplaylist", "playlist": "p", "pos": 0}`)
			Expect(h.ok(`{"kind": "listsongs", "playlist": "p"}`)["songs"]).To(Equal([]any{"alpha/1.mp3"}))

			Expect(h.do(`{"kind": "addplaylist", "playlist": "p", "song": "nope.mp3"}`).IsOK()).To(BeFalse())
		})

		It("loads what it can and reports the rest", func() {
			Expect(os.WriteFile(filepath.Join(root, ".playlists", "old.m3u"),
				[]byte("#EXTM3U\ngone.mp3\nalpha/2.mp3\n"), 0o644)).To(Succeed())

			resp := h.do(`{"kind": "load", "playlist": "old"}`)
			Expect(resp.Reason).To(Equal("song(s) `gone.mp3` not found in the database"))
			Expect(h.ok(`{"kind": "queue"}`)["queue"]).To(HaveLen(1))
		})

		It("reports missing playlists", func() {
			Expect(h.do(`{"kind": "listsongs", "playlist": "ghost"}`).Reason).To(Equal("playlist `ghost` not found"))
		})
	})

	Describe("state file", func() {
		It("saves on shutdown and restores on start", func() {
			h.ok(`{"kind": "add", "ids": [3, 1]}`)
			h.ok(`{"kind": "setvol", "volume": 20}`)
			h.ok(`{"kind": "single"}`)
			h.ok(`{"kind": "gapless"}`)
			h.stop()

			h = newHarness(root, filepath.Join(root, "state.json"))
			s := state()
			Expect(s).To(HaveKeyWithValue("volume", 20.0))
			Expect(s).To(HaveKeyWithValue("mode", "single"))
			Expect(s).To(HaveKeyWithValue("gapless", true))
			Expect(s).To(HaveKeyWithValue("state", 0.0))

			queue := h.ok(`{"kind": "queue"}`)["queue"].([]any)
			Expect(queue).To(HaveLen(2))
			Expect(queue[0]).To(HaveKeyWithValue("path", "beta/3.flac"))

			h.ok(`{"kind": "add", "ids": [2]}`)
			queue = h.ok(`{"kind": "queue"}`)["queue"].([]any)
			Expect(queue[2]).To(HaveKeyWithValue("id", 3.0))
		})
	})
})
