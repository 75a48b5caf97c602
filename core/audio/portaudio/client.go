// Package portaudio is the alternate audio device backend, useful where
// miniaudio has no working backend for the host.
package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"github.com/ParkKunsu/MaLangEE-sub000/core/audio"
)

type Client struct {
	bufferSize int
	stream     *portaudio.Stream

	in  []int16
	out []int16

	audioMu       sync.Mutex
	leftoverAudio []byte

	volumeBits atomic.Uint64

	stopCapture atomic.Bool
}

func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	in := make([]int16, bufferSize)
	out := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 1, audio.DefaultSampleRate, bufferSize, in, out)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open portaudio stream: %w", err)
	}

	client := &Client{
		bufferSize: bufferSize,
		stream:     stream,
		in:         in,
		out:        out,
	}
	client.volumeBits.Store(math.Float64bits(1))

	return client, nil
}

// Stream reads microphone buffers and forwards them until the context ends.
func (c *Client) Stream(ctx context.Context, onAudio func(audio []byte)) error {
	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("failed to start portaudio stream: %w", err)
	}
	c.stopCapture.Store(false)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if c.stopCapture.Load() {
				return nil
			}
			if err := c.stream.Read(); err != nil {
				logger.Warn("failed to read from portaudio stream", "error", err.Error())
				continue
			}

			audioBuffer := bytes.Buffer{}
			binary.Write(&audioBuffer, binary.LittleEndian, c.in)
			onAudio(audioBuffer.Bytes())
		}
	}
}

func (c *Client) StopCapture() error {
	c.stopCapture.Store(true)
	return nil
}

func (c *Client) Close() {
	c.stream.Close()
	portaudio.Terminate()
}

// SendAudio queues playback audio and drains whole device buffers.
func (c *Client) SendAudio(audio []byte) error {
	bufferSize := c.bufferSize * 2

	c.audioMu.Lock()
	c.leftoverAudio = append(c.leftoverAudio, audio...)
	for len(c.leftoverAudio) >= bufferSize {
		chunk := c.leftoverAudio[:bufferSize]
		c.leftoverAudio = c.leftoverAudio[bufferSize:]

		binary.Read(bytes.NewBuffer(chunk), binary.LittleEndian, c.out)
		c.applyVolume()
		c.audioMu.Unlock()
		if err := c.stream.Write(); err != nil {
			return fmt.Errorf("failed to write to portaudio stream: %w", err)
		}
		c.audioMu.Lock()
	}
	c.audioMu.Unlock()

	return nil
}

func (c *Client) ClearBuffer() {
	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	c.leftoverAudio = nil
}

func (c *Client) SetVolume(volume float64) {
	if volume < 0 {
		volume = 0
	} else if volume > 1 {
		volume = 1
	}
	c.volumeBits.Store(math.Float64bits(volume))
}

func (c *Client) applyVolume() {
	volume := math.Float64frombits(c.volumeBits.Load())
	if volume >= 1 {
		return
	}
	for i, sample := range c.out {
		c.out[i] = int16(float64(sample) * volume)
	}
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: audio.DefaultSampleRate,
		Format:     audio.EncodingLinear16,
	}
}
