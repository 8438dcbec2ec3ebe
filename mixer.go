package main

import (
	"encoding/binary"
	"sync"
)

// playback is one in-flight clip instance.
type playback struct {
	clip   *Clip
	volume float64
	pos    int // frame offset into the clip
}

// Mixer sums the active clip instances into a continuous stream of
// 16-bit little-endian PCM. It implements io.Reader for the audio
// player and emits silence while idle, so the output stream never
// ends. Queue may be called from any monitoring goroutine.
type Mixer struct {
	rate     int
	channels int

	mu     sync.Mutex
	active []*playback
}

// NewMixer creates a mixer producing frames at the given format.
func NewMixer(rate, channels int) *Mixer {
	return &Mixer{rate: rate, channels: channels}
}

// Queue schedules a clip for playback at the given volume. Overlapping
// instances of the same clip are independent.
func (m *Mixer) Queue(clip *Clip, volume float64) {
	if clip == nil {
		return
	}
	m.mu.Lock()
	m.active = append(m.active, &playback{clip: clip, volume: volume})
	m.mu.Unlock()
}

// Active returns the number of instances still playing.
func (m *Mixer) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Reset drops all in-flight playback.
func (m *Mixer) Reset() {
	m.mu.Lock()
	m.active = nil
	m.mu.Unlock()
}

// Read fills p with the next mixed block. It always fills whole
// frames and never returns an error; short or zero-length buffers
// yield n=0.
func (m *Mixer) Read(p []byte) (int, error) {
	frameBytes := 2 * m.channels
	frames := len(p) / frameBytes
	if frames == 0 {
		return 0, nil
	}

	block := make([]float32, frames*m.channels)
	m.mixInto(block)

	for i, s := range block {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(p[2*i:], uint16(int16(s*32767)))
	}
	return frames * frameBytes, nil
}

// mixInto accumulates every active instance into the block and drops
// the ones that finished.
func (m *Mixer) mixInto(block []float32) {
	frames := len(block) / m.channels

	m.mu.Lock()
	defer m.mu.Unlock()

	live := m.active[:0]
	for _, inst := range m.active {
		remaining := inst.clip.Frames() - inst.pos
		if remaining <= 0 {
			continue
		}
		take := frames
		if remaining < take {
			take = remaining
		}
		vol := float32(inst.volume)
		src := inst.clip.samples[inst.pos*m.channels : (inst.pos+take)*m.channels]
		for i, s := range src {
			block[i] += s * vol
		}
		inst.pos += take
		if inst.pos < inst.clip.Frames() {
			live = append(live, inst)
		}
	}
	m.active = live
}
