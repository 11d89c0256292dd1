package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// ChunkBytes is one 20 ms frame of 16 kHz mono s16le.
const ChunkBytes = 640

// Capture streams fixed-size PCM frames from one microphone.
type Capture struct {
	device Device

	client *pulse.Client
	stream *pulse.RecordStream

	chunks chan []byte
	stopCh chan struct{}

	mu      sync.Mutex
	pending []byte
	rawPCM  []byte
	keepRaw bool
	stopped bool

	inflight sync.WaitGroup
	bytes    atomic.Int64
}

// CaptureOption configures a capture.
type CaptureOption func(*Capture)

// WithRawPCM retains every captured byte for [Capture.RawPCM].
func WithRawPCM() CaptureOption {
	return func(c *Capture) { c.keepRaw = true }
}

// StartCapture opens a record stream on device. The stream stops when ctx
// ends or Stop is called.
func StartCapture(ctx context.Context, device Device, opts ...CaptureOption) (*Capture, error) {
	client, err := newClient("audio-input-microphone")
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(device.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", device.ID, err)
	}

	c := newCapture(device, opts...)
	c.client = client

	stream, err := client.NewRecord(
		pulse.NewWriter(writerFunc(c.onPCM), pulseproto.FormatInt16LE),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(ChunkBytes),
		pulse.RecordMediaName("tasmi recitation"),
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}
	c.stream = stream
	stream.Start()

	go func() {
		select {
		case <-ctx.Done():
			_ = c.Stop()
		case <-c.stopCh:
		}
	}()

	return c, nil
}

func newCapture(device Device, opts ...CaptureOption) *Capture {
	c := &Capture{
		device: device,
		chunks: make(chan []byte, 128),
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Capture) Device() Device {
	return c.device
}

// Chunks yields ChunkBytes frames and closes after Stop.
func (c *Capture) Chunks() <-chan []byte {
	return c.chunks
}

func (c *Capture) BytesCaptured() int64 {
	return c.bytes.Load()
}

// RawPCM returns a copy of all captured audio when WithRawPCM was set.
func (c *Capture) RawPCM() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.rawPCM...)
}

// Stop ends the stream, flushes the partial frame and closes Chunks. It is
// safe to call more than once.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.stopCh)
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}

	c.inflight.Wait()

	c.mu.Lock()
	tail := c.pending
	c.pending = nil
	c.mu.Unlock()

	if len(tail) > 0 {
		select {
		case c.chunks <- tail:
		default:
		}
	}
	close(c.chunks)
	return nil
}

func (c *Capture) Close() {
	_ = c.Stop()
}

func (c *Capture) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	// Add under mu so Stop's Wait cannot race it.
	c.inflight.Add(1)
	defer c.inflight.Done()

	if c.keepRaw {
		c.rawPCM = append(c.rawPCM, buffer...)
	}
	c.pending = append(c.pending, buffer...)

	var frames [][]byte
	for len(c.pending) >= ChunkBytes {
		frame := make([]byte, ChunkBytes)
		copy(frame, c.pending)
		c.pending = c.pending[ChunkBytes:]
		frames = append(frames, frame)
	}
	c.mu.Unlock()

	c.bytes.Add(int64(len(buffer)))

	for _, frame := range frames {
		select {
		case <-c.stopCh:
			return 0, io.EOF
		case c.chunks <- frame:
		}
	}
	return len(buffer), nil
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
