package library

import (
	"bytes"
	"encoding/binary"
	"io"
	"time"
)

// probeDuration reads the duration from WAV and FLAC headers. Other formats
// need a full decode to know their length, so they report zero.
func probeDuration(r io.ReadSeeker) time.Duration {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return 0
	}

	switch {
	case bytes.Equal(magic[:], []byte("RIFF")):
		return wavDuration(r)
	case bytes.Equal(magic[:], []byte("fLaC")):
		return flacDuration(r)
	default:
		return 0
	}
}

func wavDuration(r io.Reader) time.Duration {
	var riff [8]byte // size + "WAVE"
	if _, err := io.ReadFull(r, riff[:]); err != nil || !bytes.Equal(riff[4:], []byte("WAVE")) {
		return 0
	}

	var byteRate uint32
	for {
		var header [8]byte
		if _, err := io.ReadFull(r, header[:]); err != nil {
			return 0
		}
		id := string(header[:4])
		size := binary.LittleEndian.Uint32(header[4:])

		switch id {
		case "fmt ":
			if size < 16 {
				return 0
			}
			chunk := make([]byte, size)
			if _, err := io.ReadFull(r, chunk); err != nil {
				return 0
			}
			byteRate = binary.LittleEndian.Uint32(chunk[8:12])
		case "data":
			if byteRate == 0 {
				return 0
			}
			return time.Duration(float64(size) / float64(byteRate) * float64(time.Second))
		default:
			// chunks are word aligned
			skip := int64(size) + int64(size&1)
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return 0
			}
		}
		if id == "fmt " && size&1 == 1 {
			if _, err := io.CopyN(io.Discard, r, 1); err != nil {
				return 0
			}
		}
	}
}

func flacDuration(r io.Reader) time.Duration {
	// The first metadata block is always STREAMINFO: a 4-byte block header
	// followed by 34 bytes.
	var block [38]byte
	if _, err := io.ReadFull(r, block[:]); err != nil {
		return 0
	}
	info := block[4:]
	sampleRate := uint32(info[10])<<12 | uint32(info[11])<<4 | uint32(info[12])>>4
	totalSamples := uint64(info[13]&0x0F)<<32 |
		uint64(info[14])<<24 | uint64(info[15])<<16 | uint64(info[16])<<8 | uint64(info[17])
	if sampleRate == 0 {
		return 0
	}
	return time.Duration(float64(totalSamples) / float64(sampleRate) * float64(time.Second))
}
