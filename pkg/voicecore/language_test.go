package voicecore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLinguaLanguageDetector_UnknownTagsYieldDisabledDetector(t *testing.T) {
	d := NewLinguaLanguageDetector("not-a-real-tag")
	tag, ok := d.Detect("hello there")
	require.False(t, ok)
	require.Empty(t, tag)
}

func TestLinguaLanguageDetector_NilReceiverIsSafe(t *testing.T) {
	var d *LinguaLanguageDetector
	tag, ok := d.Detect("hello")
	require.False(t, ok)
	require.Empty(t, tag)
}

func TestLinguaLanguageDetector_EmptyTextNeverDetects(t *testing.T) {
	d := NewLinguaLanguageDetector("en", "fr")
	tag, ok := d.Detect("")
	require.False(t, ok)
	require.Empty(t, tag)
}
