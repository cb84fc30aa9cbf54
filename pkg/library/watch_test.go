package library_test

import (
	"context"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/jukebox/pkg/library"
)

var _ = Describe("Watcher", func() {
	It("runs one update per burst of changes", func() {
		root := GinkgoT().TempDir()
		var calls atomic.Int32

		w, err := library.NewWatcher(root, 100*time.Millisecond, func(context.Context) error {
			calls.Add(1)
			return nil
		}, nil)
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()

		touch(root, "a.mp3", "b.mp3", "c.mp3")

		Eventually(calls.Load, time.Second).Should(Equal(int32(1)))
		Consistently(calls.Load, 300*time.Millisecond).Should(Equal(int32(1)))

		cancel()
		Eventually(done).Should(Receive(BeNil()))
	})
})
