package audio

const (
	// DefaultSampleRate is the upstream microphone rate the backend expects.
	DefaultSampleRate = 16000
	// DefaultPlaybackSampleRate is assumed for inbound audio deltas that
	// omit an explicit sample_rate field.
	DefaultPlaybackSampleRate = 24000

	DefaultFormat = "linear16"

	// CaptureFrameSamples is the fixed frame size shipped upstream.
	CaptureFrameSamples = 4096
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: encodingFormat(DefaultFormat)}
}

type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

func (e EncodingInfo) BytesPerSecond() int {
	return e.SampleRate * e.Format.ByteSize()
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingLinear16 encodingFormat = "linear16"
)
