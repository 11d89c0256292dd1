package audio

import (
	"context"
	"testing"
	"time"

	"github.com/jfreymuth/pulse"
	"github.com/stretchr/testify/require"
)

func TestClipFromPCM16LE(t *testing.T) {
	clip := ClipFromPCM16LE([]byte{0x01, 0x00, 0xff, 0xff, 0x00, 0x80, 0x07}, 24000)
	require.Equal(t, []int16{1, -1, -32768}, clip.Samples)
	require.Equal(t, 24000, clip.SampleRate)
}

func TestClipDuration(t *testing.T) {
	require.Equal(t, time.Second, Clip{Samples: make([]int16, 16000), SampleRate: 16000}.Duration())
	require.Equal(t, 500*time.Millisecond, Clip{Samples: make([]int16, 12000), SampleRate: 24000}.Duration())
	require.Zero(t, Clip{Samples: make([]int16, 10)}.Duration())
	require.True(t, Clip{}.Empty())
}

func TestPlayEmptyClipIsNoop(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	require.NoError(t, NewPlayer("test").Play(context.Background(), Clip{}))
}

func TestPlayReturnsContextErrorBeforeConnecting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewPlayer("test").Play(ctx, Clip{Samples: []int16{1}, SampleRate: SampleRate})
	require.ErrorIs(t, err, context.Canceled)
}

func TestPlayFailsWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	err := NewPlayer("test").Play(context.Background(), Clip{Samples: []int16{1}, SampleRate: SampleRate})
	require.Error(t, err)
	require.Contains(t, err.Error(), "connect pulse server")
}

func TestSampleReaderStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	read := sampleReader(ctx, []int16{1, 2, 3, 4, 5}).(pulse.Int16Reader)

	buf := make([]int16, 2)
	n, err := read(buf)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []int16{1, 2}, buf)

	cancel()
	n, err = read(buf)
	require.Zero(t, n)
	require.ErrorIs(t, err, pulse.EndOfData)
}

func TestSampleReaderSignalsEndWithLastSamples(t *testing.T) {
	read := sampleReader(context.Background(), []int16{1, 2, 3}).(pulse.Int16Reader)
	buf := make([]int16, 4)
	n, err := read(buf)
	require.Equal(t, 3, n)
	require.ErrorIs(t, err, pulse.EndOfData)
}
