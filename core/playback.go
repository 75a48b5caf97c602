package conversation

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ParkKunsu/MaLangEE-sub000/core/audio"
)

const (
	// speakingGracePeriod keeps the speaking indicator lit across the short
	// gap between consecutive delta chunks so it does not flicker.
	speakingGracePeriod = 500 * time.Millisecond
	// speakingWatchdogTimeout clears the indicator even if a completion
	// callback went missing.
	speakingWatchdogTimeout = 3 * time.Second

	muteRampDuration = 100 * time.Millisecond
	muteRampSteps    = 10
)

// AudioOutput is the playback device contract. The miniaudio and portaudio
// backends both satisfy it.
type AudioOutput interface {
	SendAudio(audio []byte) error
	ClearBuffer()
	SetVolume(volume float64)
}

// AudioChunk is the ephemeral inbound audio unit: base64 PCM16 plus its
// sample rate. Never persisted.
type AudioChunk struct {
	Base64     string
	SampleRate int
}

type scheduledChunk struct {
	id         string
	startAt    time.Time
	duration   time.Duration
	startTimer *time.Timer
	doneTimer  *time.Timer
}

// PlaybackScheduler owns a logical audio clock that lines decoded chunks up
// back to back: each chunk starts at max(nextStartTime, now) and advances
// the clock by its own duration, so bursty delivery never overlaps or
// reorders playback. It also owns the AI-speaking flag and the single
// shared gain stage used for click-free muting.
type PlaybackScheduler struct {
	mu sync.Mutex

	output AudioOutput
	now    func() time.Time

	nextStartTime time.Time
	active        map[string]*scheduledChunk

	aiSpeaking        bool
	onSpeakingChanged func(bool)

	graceTimer    *time.Timer
	watchdogTimer *time.Timer

	gracePeriod     time.Duration
	watchdogTimeout time.Duration

	muted      bool
	volume     float64
	rampCancel chan struct{}
	rampPeriod time.Duration
}

type PlaybackOption func(*PlaybackScheduler)

func WithSpeakingChangedCallback(onSpeakingChanged func(bool)) PlaybackOption {
	return func(s *PlaybackScheduler) { s.onSpeakingChanged = onSpeakingChanged }
}

// WithSpeakingGracePeriod shortens timers in tests.
func WithSpeakingGracePeriod(period time.Duration) PlaybackOption {
	return func(s *PlaybackScheduler) { s.gracePeriod = period }
}

func WithSpeakingWatchdogTimeout(timeout time.Duration) PlaybackOption {
	return func(s *PlaybackScheduler) { s.watchdogTimeout = timeout }
}

func WithMuteRampDuration(duration time.Duration) PlaybackOption {
	return func(s *PlaybackScheduler) { s.rampPeriod = duration }
}

func NewPlaybackScheduler(output AudioOutput, opts ...PlaybackOption) *PlaybackScheduler {
	s := &PlaybackScheduler{
		output:            output,
		now:               time.Now,
		active:            map[string]*scheduledChunk{},
		onSpeakingChanged: func(bool) {},
		gracePeriod:       speakingGracePeriod,
		watchdogTimeout:   speakingWatchdogTimeout,
		volume:            1,
		rampPeriod:        muteRampDuration,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enqueue decodes the chunk and schedules it on the logical clock.
func (s *PlaybackScheduler) Enqueue(chunk AudioChunk) error {
	data, err := audio.DecodeBase64(chunk.Base64)
	if err != nil {
		return fmt.Errorf("failed to decode audio chunk: %w", err)
	}

	sampleRate := chunk.SampleRate
	if sampleRate <= 0 {
		sampleRate = audio.DefaultPlaybackSampleRate
	}
	duration := time.Duration(audio.DurationSec(len(data)/2, sampleRate) * float64(time.Second))

	s.mu.Lock()
	now := s.now()
	startAt := s.nextStartTime
	if startAt.Before(now) {
		startAt = now
	}
	s.nextStartTime = startAt.Add(duration)

	id := uuid.NewString()
	scheduled := &scheduledChunk{id: id, startAt: startAt, duration: duration}
	scheduled.startTimer = time.AfterFunc(startAt.Sub(now), func() {
		if err := s.output.SendAudio(data); err != nil {
			logger.Warn("failed to hand chunk to playback device", "error", err.Error())
		}
	})
	scheduled.doneTimer = time.AfterFunc(startAt.Add(duration).Sub(now), func() {
		s.complete(id)
	})
	s.active[id] = scheduled

	s.cancelGraceLocked()
	s.resetWatchdogLocked()
	s.setSpeakingLocked(true)
	s.mu.Unlock()

	return nil
}

func (s *PlaybackScheduler) complete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[id]; !ok {
		return
	}
	delete(s.active, id)

	if len(s.active) > 0 {
		return
	}

	// The next delta may be milliseconds away; wait out the grace period
	// before declaring the utterance over.
	s.cancelGraceLocked()
	s.graceTimer = time.AfterFunc(s.gracePeriod, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if len(s.active) == 0 {
			s.setSpeakingLocked(false)
		}
	})
}

// watchdogFired force-clears the speaking indicator when completions stop
// arriving. Chunks already on the schedule keep playing: the watchdog
// guards the flag, never the queue, so a long burst is not truncated.
func (s *PlaybackScheduler) watchdogFired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.watchdogTimer = nil
	if len(s.active) > 0 {
		logger.Warn("playback watchdog expired with chunks still registered",
			"active", len(s.active))
	}
	s.cancelGraceLocked()
	s.setSpeakingLocked(false)
}

// Flush is the barge-in primitive: stop every in-flight chunk immediately,
// reset the logical clock and clear the speaking flag.
func (s *PlaybackScheduler) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopAllLocked()
	s.nextStartTime = time.Time{}
	s.cancelGraceLocked()
	s.cancelWatchdogLocked()
	s.setSpeakingLocked(false)
	s.output.ClearBuffer()
}

// SetMuted ramps the shared gain linearly to its target over the ramp
// period, cancelling any in-flight ramp first so opposing toggles cannot
// fight. A step change would click.
func (s *PlaybackScheduler) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	target := 1.0
	if muted {
		target = 0
	}
	if s.rampCancel != nil {
		close(s.rampCancel)
	}
	cancel := make(chan struct{})
	s.rampCancel = cancel
	from := s.volume
	period := s.rampPeriod
	s.mu.Unlock()

	go s.ramp(from, target, period, cancel)
}

func (s *PlaybackScheduler) ramp(from, to float64, period time.Duration, cancel chan struct{}) {
	step := period / muteRampSteps
	for i := 1; i <= muteRampSteps; i++ {
		select {
		case <-cancel:
			return
		case <-time.After(step):
		}

		volume := from + (to-from)*float64(i)/muteRampSteps
		s.mu.Lock()
		s.volume = volume
		s.mu.Unlock()
		s.output.SetVolume(volume)
	}
}

func (s *PlaybackScheduler) IsMuted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

func (s *PlaybackScheduler) IsAISpeaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aiSpeaking
}

func (s *PlaybackScheduler) ActiveChunks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

func (s *PlaybackScheduler) stopAllLocked() {
	for id, chunk := range s.active {
		chunk.startTimer.Stop()
		chunk.doneTimer.Stop()
		delete(s.active, id)
	}
}

func (s *PlaybackScheduler) setSpeakingLocked(speaking bool) {
	if s.aiSpeaking == speaking {
		return
	}
	s.aiSpeaking = speaking
	go s.onSpeakingChanged(speaking)
}

func (s *PlaybackScheduler) cancelGraceLocked() {
	if s.graceTimer != nil {
		s.graceTimer.Stop()
		s.graceTimer = nil
	}
}

func (s *PlaybackScheduler) resetWatchdogLocked() {
	s.cancelWatchdogLocked()
	s.watchdogTimer = time.AfterFunc(s.watchdogTimeout, s.watchdogFired)
}

func (s *PlaybackScheduler) cancelWatchdogLocked() {
	if s.watchdogTimer != nil {
		s.watchdogTimer.Stop()
		s.watchdogTimer = nil
	}
}
