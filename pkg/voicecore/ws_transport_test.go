package voicecore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseControlFrame_AddTranscript_PopulatesEndOfSentenceAndDisfluency(t *testing.T) {
	raw := []byte(`{
		"message": "add_transcript",
		"results": [
			{
				"start_time": 0.0,
				"end_time": 0.4,
				"is_eos": true,
				"alternatives": [{"content": "um", "confidence": 0.9, "speaker": "S1", "tags": ["disfluency"]}]
			},
			{
				"start_time": 0.4,
				"end_time": 0.8,
				"alternatives": [{"content": "hello", "confidence": 0.95, "speaker": "S1"}]
			}
		]
	}`)

	msg, err := parseControlFrame(raw)
	require.NoError(t, err)
	require.Equal(t, MsgAddTranscript, msg.Kind)
	require.Len(t, msg.Results, 2)

	require.True(t, msg.Results[0].IsEndOfSentence)
	require.True(t, msg.Results[0].IsDisfluency)
	require.Equal(t, "um", msg.Results[0].Content)

	require.False(t, msg.Results[1].IsEndOfSentence)
	require.False(t, msg.Results[1].IsDisfluency)
	require.Equal(t, "hello", msg.Results[1].Content)
}

func TestParseControlFrame_RecognitionStarted_DefaultsWordDelimiter(t *testing.T) {
	raw := []byte(`{"message": "recognition_started", "id": "sess-1", "language_pack": {"language_code": "en"}}`)

	msg, err := parseControlFrame(raw)
	require.NoError(t, err)
	require.Equal(t, MsgRecognitionStarted, msg.Kind)
	require.Equal(t, "sess-1", msg.SessionID)
	require.Equal(t, " ", msg.LanguagePack.WordDelimiter)
}

func TestParseControlFrame_UnknownMessageKindErrors(t *testing.T) {
	_, err := parseControlFrame([]byte(`{"not_message": "x"}`))
	require.ErrorIs(t, err, ErrUnknownMessage)
}
