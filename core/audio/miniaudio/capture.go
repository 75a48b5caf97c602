package miniaudio

import (
	"fmt"
	"log"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/ParkKunsu/MaLangEE-sub000/core/audio"
)

type captureClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig

	onAudio func(audio []byte)

	mu sync.Mutex
}

// Init opens the capture device with the preferred low-latency mono config.
// When the preferred constraints are rejected it retries once with the
// backend default config so an unusual device still yields audio.
func (c *captureClient) Init(audioContext *malgo.AllocatedContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.audioContext = audioContext

	if err := c.initDevice(preferredCaptureConfig()); err != nil {
		log.Println("Warning: preferred capture config rejected, falling back to device default:", err)
		fallbackErr := c.initDevice(malgo.DefaultDeviceConfig(malgo.Capture))
		if fallbackErr != nil {
			return fmt.Errorf(
				"failed to initialize capture device (preferred: %v): %w",
				err, fallbackErr)
		}
	}

	return nil
}

func preferredCaptureConfig() malgo.DeviceConfig {
	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.SampleRate = uint32(audio.DefaultSampleRate)
	config.Capture.Format = malgo.FormatS16
	config.Capture.Channels = 1
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency
	config.PeriodSizeInFrames = 480
	config.Periods = 3
	return config
}

func (c *captureClient) initDevice(config malgo.DeviceConfig) error {
	bytesPerFrame := malgo.SampleSizeInBytes(malgo.FormatS16) * int(max(config.Capture.Channels, 1))

	device, err := malgo.InitDevice(c.audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pInput) < n || n == 0 {
				return
			}
			c.mu.Lock()
			onAudio := c.onAudio
			c.mu.Unlock()
			if onAudio != nil {
				onAudio(pInput[:n])
			}
		},
	})
	if err != nil {
		return err
	}

	c.config = config
	c.device = device
	return nil
}

func (c *captureClient) Start(onAudio func(audio []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("capture device not initialized")
	} else if c.device.IsStarted() {
		return nil
	}

	c.onAudio = onAudio
	if err := c.device.Start(); err != nil {
		c.onAudio = nil
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	return nil
}

func (c *captureClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil || !c.device.IsStarted() {
		return nil
	}

	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}

	c.onAudio = nil
	return nil
}

func (c *captureClient) SampleRate() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return audio.DefaultSampleRate
	}
	if rate := int(c.config.SampleRate); rate > 0 {
		return rate
	}
	return audio.DefaultSampleRate
}

func (c *captureClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}

	c.onAudio = nil
	return nil
}
