package voicecore

import "github.com/prometheus/client_golang/prometheus"

// OperatingPoint trades transcription accuracy for latency/cost.
type OperatingPoint string

const (
	OperatingStandard OperatingPoint = "standard"
	OperatingEnhanced OperatingPoint = "enhanced"
)

// AudioEncoding enumerates the raw PCM encodings the core accepts.
type AudioEncoding string

const (
	EncodingPCM16LE  AudioEncoding = "pcm_s16le"
	EncodingFloat32LE AudioEncoding = "pcm_f32le"
	EncodingMulaw    AudioEncoding = "mulaw"
)

// EndOfUtteranceMode selects the Turn Detector's strategy.
type EndOfUtteranceMode string

const (
	EOUFixed      EndOfUtteranceMode = "fixed"
	EOUAdaptive   EndOfUtteranceMode = "adaptive"
	EOUSmartTurn  EndOfUtteranceMode = "smart_turn"
	EOUExternal   EndOfUtteranceMode = "external"
)

// VocabEntry is an STT vocabulary hint.
type VocabEntry struct {
	Content    string
	SoundsLike []string
}

// Config enumerates every session-construction option, matching the
// teacher's Config/DefaultConfig pattern (pkg/orchestrator/types.go) but
// scoped to the transcription core instead of STT/LLM/TTS provider
// selection.
type Config struct {
	Language       string
	Domain         string
	OutputLocale   string
	OperatingPoint OperatingPoint

	// LanguageCandidates restricts the Segment View Builder's language
	// backfill detector (§4.4) to this language set. Empty defaults to
	// []string{Language}, the single-language session case.
	LanguageCandidates []string

	MaxDelaySeconds                float64
	EndOfUtteranceSilenceTrigger    float64
	EndOfUtteranceMaxDelay          float64
	EndOfUtteranceMode              EndOfUtteranceMode

	EnableDiarization     bool
	SpeakerSensitivity    float64
	PreferCurrentSpeaker  bool
	MaxSpeakers           int
	DiarizationFocus      DiarizationFocusConfig

	AdditionalVocab      []VocabEntry
	PunctuationOverrides map[string]string

	AudioEncoding        AudioEncoding
	SampleRate           int
	SampleWidth          int
	AudioBufferSeconds   float64
	AudioBufferFrameSize int

	EmitSentences bool

	// MinWordsToInterrupt gates short backchannel partials, grounded on the
	// teacher's Config.MinWordsToInterrupt / countWords barge-in threshold
	// in managed_stream.go.
	MinWordsToInterrupt int

	Logger   Logger
	Registry prometheus.Registerer
}

// DefaultConfig returns sane defaults for a single-speaker English session
// in adaptive end-of-utterance mode.
func DefaultConfig() Config {
	return Config{
		Language:                     "en",
		OperatingPoint:               OperatingStandard,
		MaxDelaySeconds:              2.0,
		EndOfUtteranceSilenceTrigger: 0.5,
		EndOfUtteranceMaxDelay:       3.0,
		EndOfUtteranceMode:           EOUAdaptive,
		EnableDiarization:            false,
		SpeakerSensitivity:           0.5,
		MaxSpeakers:                  4,
		DiarizationFocus:             DefaultDiarizationFocusConfig(),
		AudioEncoding:                EncodingPCM16LE,
		SampleRate:                   16000,
		SampleWidth:                  2,
		AudioBufferSeconds:           10,
		AudioBufferFrameSize:         160,
		EmitSentences:                false,
		MinWordsToInterrupt:          1,
		Logger:                       NoOpLogger{},
	}
}

func (c Config) validate() error {
	if c.Language == "" {
		return ErrInvalidConfig
	}
	if c.SampleWidth != 1 && c.SampleWidth != 2 {
		return ErrUnsupportedSampleWidth
	}
	if c.SampleRate <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

func (c Config) logger() Logger {
	if c.Logger == nil {
		return NoOpLogger{}
	}
	return c.Logger
}
