package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ParkKunsu/MaLangEE-sub000/core/audio"
)

// ErrMicrophoneUnavailable is surfaced when the input device cannot be
// acquired even with fallback constraints. The message doubles as the
// user-facing hint.
var ErrMicrophoneUnavailable = errors.New(
	"microphone unavailable: check input permission and that the device is not in use")

// AudioInput is the capture device contract. Backends acquire the device
// with preferred constraints and fall back to their defaults internally.
type AudioInput interface {
	EncodingInfo() audio.EncodingInfo
	Stream(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
	Close()
}

// microphone normalizes capture behavior for the session: it re-frames the
// device's native buffers into fixed-size blocks and keeps the recording
// flag honest when acquisition fails.
type microphone struct {
	client AudioInput

	isRecording atomic.Bool

	frameMu sync.Mutex
	pending []byte

	onFrame func(frame []byte)
	onError func(err error)
}

func newMicrophone(client AudioInput, onFrame func([]byte), onError func(error)) *microphone {
	if onFrame == nil {
		onFrame = func([]byte) {}
	}
	if onError == nil {
		onError = func(error) {}
	}
	return &microphone{client: client, onFrame: onFrame, onError: onError}
}

func (m *microphone) IsConfigured() bool {
	return m != nil && m.client != nil
}

func (m *microphone) IsRecording() bool {
	return m != nil && m.isRecording.Load()
}

func (m *microphone) EncodingInfo() audio.EncodingInfo {
	if !m.IsConfigured() {
		return audio.GetDefaultEncodingInfo()
	}
	return m.client.EncodingInfo()
}

// Start begins streaming fixed-size frames to onFrame. Device acquisition
// is asynchronous; failure is reported through onError and leaves the
// microphone in the not-recording state.
func (m *microphone) Start(ctx context.Context) error {
	if !m.IsConfigured() {
		return fmt.Errorf("no audio input configured")
	}
	if !m.isRecording.CompareAndSwap(false, true) {
		return nil
	}

	go func() {
		if err := m.client.Stream(ctx, m.handleAudio); err != nil {
			m.isRecording.Store(false)
			m.onError(fmt.Errorf("%w: %v", ErrMicrophoneUnavailable, err))
		}
	}()

	return nil
}

// Stop releases the device. Idempotent.
func (m *microphone) Stop() error {
	if m == nil || !m.isRecording.CompareAndSwap(true, false) {
		return nil
	}

	m.frameMu.Lock()
	m.pending = nil
	m.frameMu.Unlock()

	if err := m.client.StopCapture(); err != nil {
		return fmt.Errorf("failed to stop capture: %w", err)
	}
	return nil
}

func (m *microphone) Close() {
	if m.IsConfigured() {
		m.Stop()
		m.client.Close()
	}
}

// handleAudio accumulates native device buffers and emits exactly
// CaptureFrameSamples-sized frames.
func (m *microphone) handleAudio(data []byte) {
	if !m.isRecording.Load() {
		return
	}

	frameBytes := audio.CaptureFrameSamples * 2

	m.frameMu.Lock()
	m.pending = append(m.pending, data...)
	var frames [][]byte
	for len(m.pending) >= frameBytes {
		frame := make([]byte, frameBytes)
		copy(frame, m.pending[:frameBytes])
		m.pending = m.pending[frameBytes:]
		frames = append(frames, frame)
	}
	m.frameMu.Unlock()

	for _, frame := range frames {
		m.onFrame(frame)
	}
}
