package conversation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ParkKunsu/MaLangEE-sub000/core/audio"
)

type fakeAudioInput struct {
	streamErr   error
	streamCalls atomic.Int32
	stopCalls   atomic.Int32
	closed      atomic.Bool

	mu      sync.Mutex
	onAudio func([]byte)
}

func (f *fakeAudioInput) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}

func (f *fakeAudioInput) Stream(_ context.Context, onAudio func([]byte)) error {
	f.streamCalls.Add(1)
	if f.streamErr != nil {
		return f.streamErr
	}
	f.mu.Lock()
	f.onAudio = onAudio
	f.mu.Unlock()
	return nil
}

func (f *fakeAudioInput) push(data []byte) {
	f.mu.Lock()
	onAudio := f.onAudio
	f.mu.Unlock()
	if onAudio != nil {
		onAudio(data)
	}
}

func (f *fakeAudioInput) StopCapture() error {
	f.stopCalls.Add(1)
	return nil
}

func (f *fakeAudioInput) Close() {
	f.closed.Store(true)
}

func waitForCondition(t *testing.T, condition func() bool, message string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", message)
}

func TestMicrophoneEmitsFixedSizeFrames(t *testing.T) {
	input := &fakeAudioInput{}

	var framesMu sync.Mutex
	var frames [][]byte
	mic := newMicrophone(input, func(frame []byte) {
		framesMu.Lock()
		frames = append(frames, frame)
		framesMu.Unlock()
	}, nil)

	if err := mic.Start(context.Background()); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}
	waitForCondition(t, func() bool { return input.streamCalls.Load() == 1 }, "stream to start")

	frameBytes := audio.CaptureFrameSamples * 2

	// Three half frames: should produce exactly one full frame so far.
	half := make([]byte, frameBytes/2)
	input.push(half)
	input.push(half)
	input.push(half)

	framesMu.Lock()
	got := len(frames)
	framesMu.Unlock()
	if got != 1 {
		t.Fatalf("expected 1 full frame from 1.5 frames of input, got %d", got)
	}

	input.push(half)
	framesMu.Lock()
	defer framesMu.Unlock()
	if len(frames) != 2 {
		t.Fatalf("expected 2 full frames after 2 frames of input, got %d", len(frames))
	}
	for i, frame := range frames {
		if len(frame) != frameBytes {
			t.Fatalf("frame %d: expected %d bytes, got %d", i, frameBytes, len(frame))
		}
	}
}

func TestMicrophoneStartIsIdempotentWhileRecording(t *testing.T) {
	input := &fakeAudioInput{}
	mic := newMicrophone(input, nil, nil)

	mic.Start(context.Background())
	mic.Start(context.Background())

	waitForCondition(t, func() bool { return input.streamCalls.Load() >= 1 }, "stream to start")
	time.Sleep(20 * time.Millisecond)
	if got := input.streamCalls.Load(); got != 1 {
		t.Fatalf("expected a single stream start, got %d", got)
	}
}

func TestMicrophoneSurfacesAcquisitionFailure(t *testing.T) {
	input := &fakeAudioInput{streamErr: errors.New("device busy")}

	var gotErr atomic.Value
	mic := newMicrophone(input, nil, func(err error) {
		gotErr.Store(err)
	})

	if err := mic.Start(context.Background()); err != nil {
		t.Fatalf("expected start itself to succeed, got %v", err)
	}

	waitForCondition(t, func() bool { return gotErr.Load() != nil }, "acquisition error")

	err := gotErr.Load().(error)
	if !errors.Is(err, ErrMicrophoneUnavailable) {
		t.Fatalf("expected microphone-unavailable hint, got %v", err)
	}
	if mic.IsRecording() {
		t.Fatalf("expected not-recording state after acquisition failure")
	}
}

func TestMicrophoneStopIsIdempotentAndReleasesDevice(t *testing.T) {
	input := &fakeAudioInput{}
	mic := newMicrophone(input, nil, nil)

	mic.Start(context.Background())
	waitForCondition(t, func() bool { return input.streamCalls.Load() == 1 }, "stream to start")

	if err := mic.Stop(); err != nil {
		t.Fatalf("expected stop to succeed, got %v", err)
	}
	if err := mic.Stop(); err != nil {
		t.Fatalf("expected repeated stop to be a no-op, got %v", err)
	}
	if got := input.stopCalls.Load(); got != 1 {
		t.Fatalf("expected a single device stop, got %d", got)
	}
	if mic.IsRecording() {
		t.Fatalf("expected not-recording after stop")
	}
}

func TestMicrophoneWithoutClientFailsStart(t *testing.T) {
	mic := newMicrophone(nil, nil, nil)

	if err := mic.Start(context.Background()); err == nil {
		t.Fatalf("expected start without a configured input to fail")
	}
	if got, want := mic.EncodingInfo(), audio.GetDefaultEncodingInfo(); got != want {
		t.Fatalf("expected default encoding info %+v, got %+v", want, got)
	}
}
