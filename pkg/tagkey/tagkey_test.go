package tagkey_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/jukebox/pkg/tagkey"
)

var _ = Describe("Tag keys", func() {
	It("knows thirty tags", func() {
		Expect(tagkey.All()).To(HaveLen(30))
	})

	It("parses known names", func() {
		k, err := tagkey.Parse("albumartist")
		Expect(err).NotTo(HaveOccurred())
		Expect(k).To(Equal(tagkey.AlbumArtist))
	})

	It("rejects unknown names", func() {
		_, err := tagkey.Parse("title")
		Expect(err).To(MatchError(tagkey.ErrUnknown{Name: "title"}))
	})

	It("stops at the first unknown name in a list", func() {
		_, err := tagkey.ParseAll([]string{"album", "nope", "artist"})
		Expect(err).To(MatchError(ContainSubstring("nope")))
	})

	DescribeTable("kinds",
		func(k tagkey.Key, kind tagkey.Kind) {
			Expect(k.Kind()).To(Equal(kind))
		},
		Entry("bpm is an integer", tagkey.Bpm, tagkey.Integer),
		Entry("tracknumber is out-of", tagkey.TrackNumber, tagkey.OutOf),
		Entry("discnumber is out-of", tagkey.DiscNumber, tagkey.OutOf),
		Entry("movementnumber is out-of", tagkey.MovementNumber, tagkey.OutOf),
		Entry("artist is a string", tagkey.Artist, tagkey.String),
	)

	DescribeTable("CompareValues",
		func(k tagkey.Key, lhs, rhs string, want int) {
			Expect(k.CompareValues(lhs, rhs)).To(Equal(want))
		},
		Entry("strings lexicographically", tagkey.Artist, "Abba", "Blur", -1),
		Entry("integers numerically", tagkey.Bpm, "90", "128", -1),
		Entry("unparsable integers as equal", tagkey.Bpm, "fast", "128", 0),
		Entry("out-of by numerator", tagkey.TrackNumber, "10/12", "2/12", 1),
		Entry("out-of without total", tagkey.TrackNumber, "3", "3/12", 0),
		Entry("unparsable out-of as equal", tagkey.TrackNumber, "A1", "2/12", 0),
	)
})
