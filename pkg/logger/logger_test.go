package logger_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/jukebox/pkg/logger"
)

var _ = Describe("New", func() {
	It("writes console lines and JSON file lines", func() {
		var console bytes.Buffer
		path := filepath.Join(GinkgoT().TempDir(), "logs", "jukebox.log")

		log, closeFn, err := logger.New(logger.Options{Console: &console, File: path})
		Expect(err).NotTo(HaveOccurred())
		log.Info("song started", zap.String("path", "a.mp3"))
		log.Debug("hidden")
		Expect(closeFn()).To(Succeed())

		Expect(console.String()).To(ContainSubstring("song started"))
		Expect(console.String()).NotTo(ContainSubstring("hidden"))

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		Expect(lines).To(HaveLen(1))

		var entry map[string]any
		Expect(json.Unmarshal([]byte(lines[0]), &entry)).To(Succeed())
		Expect(entry).To(HaveKeyWithValue("msg", "song started"))
		Expect(entry).To(HaveKeyWithValue("path", "a.mp3"))
		Expect(entry).To(HaveKeyWithValue("level", "info"))
	})

	It("logs debug lines in debug mode", func() {
		var console bytes.Buffer
		log, closeFn, err := logger.New(logger.Options{Debug: true, Console: &console})
		Expect(err).NotTo(HaveOccurred())
		log.Debug("frame received")
		Expect(closeFn()).To(Succeed())
		Expect(console.String()).To(ContainSubstring("frame received"))
	})
})
