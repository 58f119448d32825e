// SPDX-License-Identifier: MIT
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// pcmDecoder yields interleaved 16-bit samples from an encoded stream.
// read returns io.EOF once the stream is exhausted.
type pcmDecoder interface {
	sampleRate() int
	channels() int
	read(dst []int16) (int, error)
}

// newDecoder picks a decoder from the file extension.
func newDecoder(path string, r io.ReadSeeker) (pcmDecoder, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".wav", ".wave":
		return newWAVDecoder(r)
	case ".mp3":
		return newMP3Decoder(r)
	case ".ogg", ".oga":
		return newOGGDecoder(r)
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrUnsupportedFormat, ext)
	}
}

// --- WAV decoder ---

// wavReader is the subset of wav.Decoder used here.
type wavReader interface {
	Format() *goaudio.Format
	PCMBuffer(buf *goaudio.IntBuffer) (int, error)
}

type wavDecoder struct {
	dec      wavReader
	rate     int
	chans    int
	bitDepth int
	buf      *goaudio.IntBuffer
}

func newWAVDecoder(r io.ReadSeeker) (*wavDecoder, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: invalid WAV file", ErrUnsupportedFormat)
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("%w: reading WAV PCM data: %w", ErrUnsupportedFormat, err)
	}

	bitDepth := int(dec.BitDepth)
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d-bit WAV", ErrUnsupportedFormat, bitDepth)
	}

	return &wavDecoder{
		dec:      dec,
		rate:     int(dec.SampleRate),
		chans:    int(dec.NumChans),
		bitDepth: bitDepth,
	}, nil
}

func (d *wavDecoder) sampleRate() int { return d.rate }
func (d *wavDecoder) channels() int   { return d.chans }

func (d *wavDecoder) read(dst []int16) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	if d.buf == nil || cap(d.buf.Data) < len(dst) {
		d.buf = &goaudio.IntBuffer{
			Data:   make([]int, len(dst)),
			Format: d.dec.Format(),
		}
	}
	d.buf.Data = d.buf.Data[:len(dst)]

	n, err := d.dec.PCMBuffer(d.buf)
	if n == 0 {
		if err != nil {
			return 0, err
		}
		return 0, io.EOF
	}

	for i := range n {
		dst[i] = scaleTo16(d.buf.Data[i], d.bitDepth)
	}
	return n, nil
}

// scaleTo16 converts a go-audio integer sample of the given depth to int16.
// 8-bit WAV data is unsigned.
func scaleTo16(v, bitDepth int) int16 {
	switch bitDepth {
	case 8:
		return int16((v - 128) << 8)
	case 24:
		return int16(v >> 8)
	case 32:
		return int16(v >> 16)
	default:
		return int16(v)
	}
}

// --- MP3 decoder ---

// mp3Reader is the subset of mp3.Decoder used here.
type mp3Reader interface {
	Read([]byte) (int, error)
	SampleRate() int
}

// mp3Decoder exposes go-mp3's output, which is always 16-bit little-endian
// stereo.
type mp3Decoder struct {
	dec mp3Reader
	buf []byte
}

func newMP3Decoder(r io.Reader) (*mp3Decoder, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}
	return &mp3Decoder{dec: dec}, nil
}

func (d *mp3Decoder) sampleRate() int { return d.dec.SampleRate() }
func (d *mp3Decoder) channels() int   { return 2 }

func (d *mp3Decoder) read(dst []int16) (int, error) {
	bytesNeeded := len(dst) * 2
	if cap(d.buf) < bytesNeeded {
		d.buf = make([]byte, bytesNeeded)
	}
	d.buf = d.buf[:bytesNeeded]

	n, err := io.ReadFull(d.dec, d.buf)
	samples := n / 2
	for i := range samples {
		dst[i] = int16(binary.LittleEndian.Uint16(d.buf[2*i:]))
	}
	if samples == 0 {
		if err == nil || err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return 0, err
	}
	return samples, nil
}

// --- OGG Vorbis decoder ---

// oggReader is the subset of oggvorbis.Reader used here.
type oggReader interface {
	Read([]float32) (int, error)
	SampleRate() int
	Channels() int
}

type oggDecoder struct {
	reader oggReader
	buf    []float32
}

func newOGGDecoder(r io.Reader) (*oggDecoder, error) {
	reader, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding OGG: %w", ErrUnsupportedFormat, err)
	}
	return &oggDecoder{reader: reader}, nil
}

func (d *oggDecoder) sampleRate() int { return d.reader.SampleRate() }
func (d *oggDecoder) channels() int   { return d.reader.Channels() }

func (d *oggDecoder) read(dst []int16) (int, error) {
	if cap(d.buf) < len(dst) {
		d.buf = make([]float32, len(dst))
	}
	d.buf = d.buf[:len(dst)]

	n, err := d.reader.Read(d.buf)
	if n == 0 {
		if err != nil {
			return 0, err
		}
		return 0, io.EOF
	}

	for i := range n {
		s := float64(d.buf[i])
		s = math.Max(-1, math.Min(1, s))
		dst[i] = int16(s * math.MaxInt16)
	}
	return n, nil
}
