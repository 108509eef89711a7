package voicecore

import "context"

// MessageKind discriminates the tagged-variant messages the Transport
// Adapter exchanges with the STT service, per §9's "dynamic dict-typed
// payloads are modelled as tagged variants at the parse boundary".
type MessageKind string

const (
	// Outgoing control messages.
	MsgStartRecognition  MessageKind = "start_recognition"
	MsgEndOfStream       MessageKind = "end_of_stream"
	MsgFinalizeHint      MessageKind = "finalize_hint"
	MsgGetSpeakersRequest MessageKind = "get_speakers_request"

	// Incoming messages.
	MsgRecognitionStarted MessageKind = "recognition_started"
	MsgAddPartialTranscript MessageKind = "add_partial_transcript"
	MsgAddTranscript      MessageKind = "add_transcript"
	MsgEndOfUtterance     MessageKind = "end_of_utterance"
	MsgError              MessageKind = "error"
	MsgWarning             MessageKind = "warning"
	MsgInfo                MessageKind = "info"
	MsgSpeakersResult      MessageKind = "speakers_result"
)

// Message is the tagged variant every inbound/outbound control frame is
// parsed into or rendered from, so downstream components never see a raw
// dict-typed payload.
type Message struct {
	Kind MessageKind

	// Populated on MsgRecognitionStarted.
	SessionID    string
	LanguagePack LanguagePack

	// Populated on MsgAddPartialTranscript / MsgAddTranscript.
	Results []RecognitionResult

	// Populated on MsgError / MsgWarning / MsgInfo.
	Text string

	// Populated on MsgSpeakersResult.
	Speakers []SpeakerEnrolment

	// Raw carries the untyped payload for protocol evolution / debugging.
	Raw map[string]interface{}
}

// RecognitionResult is one word/punctuation entry inside an incoming
// partial or final message, the wire shape the Fragment Reconciler parses
// into Fragments.
type RecognitionResult struct {
	Content         string
	StartTime       float64
	EndTime         float64
	Speaker         string
	Confidence      float64
	IsPunctuation   bool
	IsEndOfSentence bool
	IsDisfluency    bool
	AttachesTo      Attachment
	Language        string
}

// SpeakerEnrolment is one entry of a speakers-result reply.
type SpeakerEnrolment struct {
	Label string
	Data  []byte
}

// HeaderProducer is injected by the caller to supply opaque auth headers;
// the core treats credentials as a black box, per §4.2.
type HeaderProducer func() map[string]string

// StartRecognitionPayload carries the audio format and transcription
// configuration sent as the first outbound control message.
type StartRecognitionPayload struct {
	AudioEncoding AudioEncoding
	SampleRate    int
	Config        Config
}

// Transport is the seam between the core and a concrete STT wire protocol.
// Implementations MUST preserve the order of sends on a single connection
// and deliver received messages in the order the server produced them.
type Transport interface {
	Connect(ctx context.Context, headers HeaderProducer) error
	SendControl(ctx context.Context, kind MessageKind, payload interface{}) error
	SendAudio(ctx context.Context, seq uint64, data []byte) error
	Receive(ctx context.Context) (Message, error)
	Close() error
}
