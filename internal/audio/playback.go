package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/jfreymuth/pulse"
)

// Clip is mono signed 16-bit PCM ready for playback.
type Clip struct {
	Samples    []int16
	SampleRate int
}

// ClipFromPCM16LE decodes little-endian s16 bytes. A trailing odd byte is
// dropped.
func ClipFromPCM16LE(data []byte, sampleRate int) Clip {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return Clip{Samples: samples, SampleRate: sampleRate}
}

// Duration is the playback length of the clip.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

func (c Clip) Empty() bool {
	return len(c.Samples) == 0
}

// Player plays clips on the default Pulse sink.
type Player struct {
	MediaName string
	Latency   float64
}

// NewPlayer returns a player tagging its streams with mediaName.
func NewPlayer(mediaName string) *Player {
	return &Player{MediaName: mediaName, Latency: 0.05}
}

// Play blocks until clip has been played or ctx ends. Cancellation stops
// feeding samples and returns ctx.Err().
func (p *Player) Play(ctx context.Context, clip Clip) error {
	if clip.Empty() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rate := clip.SampleRate
	if rate <= 0 {
		rate = SampleRate
	}
	latency := p.Latency
	if latency <= 0 {
		latency = 0.05
	}
	name := p.MediaName
	if name == "" {
		name = appName + " playback"
	}

	client, err := newClient("audio-speakers")
	if err != nil {
		return err
	}
	defer client.Close()

	stream, err := client.NewPlayback(
		sampleReader(ctx, clip.Samples),
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(rate),
		pulse.PlaybackLatency(latency),
		pulse.PlaybackMediaName(name),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play stream: %w", err)
	}
	return nil
}

// sampleReader feeds samples to Pulse and ends early once ctx is done.
func sampleReader(ctx context.Context, samples []int16) pulse.Reader {
	cursor := 0
	return pulse.Int16Reader(func(buf []int16) (int, error) {
		if ctx.Err() != nil || cursor >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})
}
