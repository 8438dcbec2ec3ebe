package main

import (
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// Player drives the system audio output from a Mixer.
type Player struct {
	ctx   *oto.Context
	mixer *Mixer

	mu     sync.Mutex
	player *oto.Player
}

// NewPlayer opens the audio output matching the mixer's format. The
// underlying context is process-wide and stays open for the process
// lifetime.
func NewPlayer(mixer *Mixer) (*Player, error) {
	op := &oto.NewContextOptions{
		SampleRate:   mixer.rate,
		ChannelCount: mixer.channels,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("open audio output: %w", err)
	}
	<-ready

	return &Player{ctx: ctx, mixer: mixer}, nil
}

// Start begins streaming the mixer. No-op if already playing.
func (p *Player) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player != nil {
		return
	}
	p.player = p.ctx.NewPlayer(p.mixer)
	p.player.Play()
}

// Stop ends streaming and drops queued playback.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player == nil {
		return
	}
	p.player.Close()
	p.player = nil
	p.mixer.Reset()
}
