package miniaudio

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/ParkKunsu/MaLangEE-sub000/core/audio"
)

type playbackClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig

	leftoverAudio []byte

	// volumeBits holds math.Float64bits of the current gain so the device
	// callback can read it without taking a lock.
	volumeBits atomic.Uint64

	mu      sync.Mutex
	audioMu sync.Mutex
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sampleRate := uint32(audio.DefaultPlaybackSampleRate)
	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	c.config = malgo.DefaultDeviceConfig(malgo.Playback)
	c.config.SampleRate = sampleRate
	c.config.Playback.Format = format
	c.config.Playback.Channels = uint32(channels)
	c.config.Alsa.NoMMap = 1
	c.config.PeriodSizeInFrames = sampleRate / 10 // ~100ms of audio
	c.config.Periods = 4

	c.audioContext = audioContext
	c.volumeBits.Store(math.Float64bits(1))

	var err error
	if c.device, err = malgo.InitDevice(
		c.audioContext.Context,
		c.config,
		malgo.DeviceCallbacks{Data: c.processAudio(bytesPerFrame)},
	); err != nil {
		return err
	}

	return nil
}

func (c *playbackClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("playback device not initialized")
	}

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	return nil
}

func (c *playbackClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("playback device not initialized")
	}

	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop playback device: %w", err)
	}

	c.ClearBuffer()
	return nil
}

func (c *playbackClient) SendAudio(audio []byte) error {
	if c.device == nil {
		return fmt.Errorf("playback device not initialized")
	} else if !c.device.IsStarted() {
		return fmt.Errorf("playback device not started")
	}

	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	c.leftoverAudio = append(c.leftoverAudio, audio...)
	return nil
}

func (c *playbackClient) ClearBuffer() {
	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	c.leftoverAudio = nil
}

// SetVolume scales queued samples in the device callback. The value is
// clamped to [0, 1].
func (c *playbackClient) SetVolume(volume float64) {
	if volume < 0 {
		volume = 0
	} else if volume > 1 {
		volume = 1
	}
	c.volumeBits.Store(math.Float64bits(volume))
}

func (c *playbackClient) Volume() float64 {
	return math.Float64frombits(c.volumeBits.Load())
}

func (c *playbackClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return fmt.Errorf("playback device not initialized")
	}

	c.device.Uninit()
	c.device = nil

	return nil
}

func (c *playbackClient) processAudio(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame

		c.audioMu.Lock()
		n := copy(pOutput, c.leftoverAudio)
		if n >= len(c.leftoverAudio) {
			c.leftoverAudio = nil
		} else {
			c.leftoverAudio = c.leftoverAudio[n:]
		}
		c.audioMu.Unlock()

		if n > need {
			n = need
		}
		c.applyVolume(pOutput[:n])
	}
}

func (c *playbackClient) applyVolume(buffer []byte) {
	volume := c.Volume()
	if volume >= 1 {
		return
	}

	for i := 0; i+1 < len(buffer); i += 2 {
		sample := int16(uint16(buffer[i]) | uint16(buffer[i+1])<<8)
		scaled := int16(float64(sample) * volume)
		buffer[i] = byte(uint16(scaled))
		buffer[i+1] = byte(uint16(scaled) >> 8)
	}
}
