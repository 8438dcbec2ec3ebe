package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
)

// Clip is a decoded audio sample: interleaved float32 frames in
// [-1, 1].
type Clip struct {
	samples  []float32
	channels int
	rate     int
}

// Frames returns the clip length in frames.
func (c *Clip) Frames() int {
	return len(c.samples) / c.channels
}

// toChannels converts between mono and stereo.
func (c *Clip) toChannels(channels int) (*Clip, error) {
	if channels == c.channels {
		return c, nil
	}
	frames := c.Frames()
	switch {
	case c.channels == 1 && channels == 2:
		out := make([]float32, frames*2)
		for i := 0; i < frames; i++ {
			out[2*i] = c.samples[i]
			out[2*i+1] = c.samples[i]
		}
		return &Clip{samples: out, channels: 2, rate: c.rate}, nil
	case c.channels == 2 && channels == 1:
		out := make([]float32, frames)
		for i := 0; i < frames; i++ {
			out[i] = (c.samples[2*i] + c.samples[2*i+1]) / 2
		}
		return &Clip{samples: out, channels: 1, rate: c.rate}, nil
	}
	return nil, fmt.Errorf("cannot convert %d channels to %d", c.channels, channels)
}

// Library holds the loaded clips keyed by clip name. The first loaded
// clip fixes the output sample rate; later clips must match it (the
// mixer does no resampling) and are converted to its channel count.
type Library struct {
	clips       map[string]*Clip
	defaultClip *Clip
	rate        int
	channels    int
}

// LoadLibrary builds a Library from the configured source.
func LoadLibrary(mode Mode, source string) (*Library, error) {
	l := &Library{clips: make(map[string]*Clip)}

	var err error
	switch mode {
	case ModeFile:
		err = l.loadFile(source)
	case ModeDirectory:
		err = l.loadDirectory(source)
	case ModeMapping:
		err = l.loadMapping(source)
	default:
		err = fmt.Errorf("unsupported mode: %v", mode)
	}
	if err != nil {
		return nil, err
	}

	if len(l.clips) == 0 {
		return nil, errors.New("no audio clips were loaded")
	}
	if l.defaultClip == nil {
		l.defaultClip = l.clips["default"]
	}
	if l.defaultClip == nil {
		// Any clip serves as the fallback; take the first by name so
		// the choice is stable.
		names := l.Keys()
		l.defaultClip = l.clips[names[0]]
	}
	return l, nil
}

// ClipFor returns the clip mapped to name, or nil.
func (l *Library) ClipFor(name string) *Clip {
	return l.clips[name]
}

// DefaultClip returns the fallback clip.
func (l *Library) DefaultClip() *Clip {
	return l.defaultClip
}

// Keys returns the mapped clip names, sorted.
func (l *Library) Keys() []string {
	names := make([]string, 0, len(l.clips))
	for name := range l.clips {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SampleRate returns the library's output sample rate.
func (l *Library) SampleRate() int {
	return l.rate
}

// Channels returns the library's output channel count.
func (l *Library) Channels() int {
	return l.channels
}

func (l *Library) loadFile(path string) error {
	clip, err := loadClip(path)
	if err != nil {
		return err
	}
	clip, err = l.ensureFormat(clip)
	if err != nil {
		return err
	}
	l.clips["default"] = clip
	l.defaultClip = clip
	return nil
}

func (l *Library) loadDirectory(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read sound directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".wav") {
			continue
		}
		name := strings.ToLower(strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())))
		path := filepath.Join(dir, entry.Name())
		clip, err := loadClip(path)
		if err != nil {
			log.Warn("skipping clip", "file", path, "err", err)
			continue
		}
		clip, err = l.ensureFormat(clip)
		if err != nil {
			log.Warn("skipping clip", "file", path, "err", err)
			continue
		}
		l.clips[name] = clip
	}
	return nil
}

func (l *Library) loadMapping(path string) error {
	mf, err := LoadMapping(path)
	if err != nil {
		return err
	}

	dir := mf.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(filepath.Dir(path), dir)
	}

	// Keys sharing a file share one decode.
	cache := make(map[string]*Clip)
	for key, file := range mf.Keys {
		clip, ok := cache[file]
		if !ok {
			clip, err = loadClip(filepath.Join(dir, file))
			if err != nil {
				log.Warn("skipping clip", "key", key, "err", err)
				continue
			}
			cache[file] = clip
		}
		clip, err = l.ensureFormat(clip)
		if err != nil {
			log.Warn("skipping clip", "key", key, "err", err)
			continue
		}
		l.clips[strings.ToLower(key)] = clip
	}
	return nil
}

// ensureFormat locks the library format to the first clip and adapts
// later clips to it.
func (l *Library) ensureFormat(clip *Clip) (*Clip, error) {
	if l.rate == 0 {
		l.rate = clip.rate
		l.channels = clip.channels
		return clip, nil
	}
	if clip.rate != l.rate {
		return nil, fmt.Errorf("sample rate mismatch: expected %d, got %d", l.rate, clip.rate)
	}
	return clip.toChannels(l.channels)
}

func loadClip(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	clip, err := decodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return clip, nil
}

// decodeWAV reads a RIFF/WAVE stream with integer PCM samples (8, 16,
// 24 or 32 bit, mono or stereo) and normalizes to float32.
func decodeWAV(r io.Reader) (*Clip, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, errors.New("not a WAVE file")
	}

	var (
		channels   int
		rate       int
		bits       int
		haveFormat bool
	)

	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, errors.New("no data chunk")
			}
			return nil, err
		}
		size := int(binary.LittleEndian.Uint32(chunk[4:8]))

		switch string(chunk[0:4]) {
		case "fmt ":
			if size < 16 {
				return nil, errors.New("short fmt chunk")
			}
			buf := make([]byte, size+size%2)
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, err
			}
			format := binary.LittleEndian.Uint16(buf[0:2])
			if format != 1 {
				return nil, fmt.Errorf("unsupported WAVE format %d (PCM only)", format)
			}
			channels = int(binary.LittleEndian.Uint16(buf[2:4]))
			rate = int(binary.LittleEndian.Uint32(buf[4:8]))
			bits = int(binary.LittleEndian.Uint16(buf[14:16]))
			haveFormat = true

		case "data":
			if !haveFormat {
				return nil, errors.New("data chunk before fmt chunk")
			}
			if channels != 1 && channels != 2 {
				return nil, fmt.Errorf("unsupported channel count: %d", channels)
			}
			data := make([]byte, size)
			if _, err := io.ReadFull(r, data); err != nil {
				return nil, err
			}
			samples, err := decodeSamples(data, bits)
			if err != nil {
				return nil, err
			}
			return &Clip{samples: samples, channels: channels, rate: rate}, nil

		default:
			// LIST, fact, cue and friends; chunks are word aligned.
			if _, err := io.CopyN(io.Discard, r, int64(size+size%2)); err != nil {
				return nil, err
			}
		}
	}
}

// decodeSamples converts raw little-endian PCM to normalized float32.
func decodeSamples(data []byte, bits int) ([]float32, error) {
	switch bits {
	case 8:
		// 8-bit WAVE is unsigned.
		out := make([]float32, len(data))
		for i, b := range data {
			out[i] = (float32(b) - 128) / 128
		}
		return out, nil
	case 16:
		out := make([]float32, len(data)/2)
		for i := range out {
			v := int16(binary.LittleEndian.Uint16(data[2*i:]))
			out[i] = float32(v) / 32768
		}
		return out, nil
	case 24:
		out := make([]float32, len(data)/3)
		for i := range out {
			b := data[3*i : 3*i+3]
			v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
			if v&0x800000 != 0 {
				v -= 0x1000000
			}
			out[i] = float32(v) / 8388608
		}
		return out, nil
	case 32:
		out := make([]float32, len(data)/4)
		for i := range out {
			v := int32(binary.LittleEndian.Uint32(data[4*i:]))
			out[i] = float32(v) / 2147483648
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported sample width: %d bits", bits)
}
