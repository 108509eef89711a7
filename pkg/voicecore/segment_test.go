package voicecore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func wordFrag(idx uint64, speaker, content string, start, end float64, final bool) Fragment {
	return Fragment{
		Index:     idx,
		Speaker:   speaker,
		Content:   content,
		StartTime: start,
		EndTime:   end,
		Kind:      FragmentWord,
		IsFinal:   final,
	}
}

func TestSegmentBuilder_GroupsBySpeaker(t *testing.T) {
	b := NewSegmentBuilder(" ", false, nil)
	fragments := []Fragment{
		wordFrag(0, "A", "hello", 0.0, 0.3, true),
		wordFrag(1, "A", "there", 0.3, 0.6, true),
		wordFrag(2, "B", "hi", 0.6, 0.9, true),
	}

	view := b.Build(fragments, DefaultDiarizationFocusConfig())
	require.Equal(t, 2, view.SegmentCount)
	require.Equal(t, "hello there", view.Segments[0].Text)
	require.Equal(t, "A", view.Segments[0].Speaker)
	require.Equal(t, "hi", view.Segments[1].Text)
	require.Equal(t, "B", view.Segments[1].Speaker)
}

func TestSegmentBuilder_EmitSentencesSplitsOnEndOfSentence(t *testing.T) {
	b := NewSegmentBuilder(" ", true, nil)
	one := wordFrag(0, "A", "done", 0.0, 0.3, true)
	one.IsEndOfSentence = true
	fragments := []Fragment{
		one,
		wordFrag(1, "A", "next", 0.3, 0.6, true),
	}

	view := b.Build(fragments, DefaultDiarizationFocusConfig())
	require.Equal(t, 2, view.SegmentCount, "a final end-of-sentence fragment starts a new segment even for the same speaker")
}

func TestSegmentBuilder_RetainModeMarksInactive(t *testing.T) {
	b := NewSegmentBuilder(" ", false, nil)
	fragments := []Fragment{
		wordFrag(0, "A", "hi", 0.0, 0.3, true),
		wordFrag(1, "B", "yo", 0.3, 0.6, true),
	}
	focus := DiarizationFocusConfig{
		FocusMode:     FocusRetain,
		FocusSpeakers: map[string]bool{"A": true},
	}

	view := b.Build(fragments, focus)
	require.True(t, view.Segments[0].IsActive)
	require.False(t, view.Segments[1].IsActive, "retain mode keeps but deactivates a speaker outside FocusSpeakers")
	require.Equal(t, 0, view.LastActiveSegmentIdx)
}

func TestSegmentBuilder_NoActiveSegmentYieldsNegativeIndex(t *testing.T) {
	b := NewSegmentBuilder(" ", false, nil)
	fragments := []Fragment{
		wordFrag(0, "B", "yo", 0.0, 0.3, true),
	}
	focus := DiarizationFocusConfig{
		FocusMode:     FocusRetain,
		FocusSpeakers: map[string]bool{"A": true},
	}

	view := b.Build(fragments, focus)
	require.False(t, view.Segments[0].IsActive)
	require.Equal(t, -1, view.LastActiveSegmentIdx, "no active segment must not be confused with segment 0 being active")
}

func TestSegmentBuilder_AttachmentSuppressesDelimiter(t *testing.T) {
	b := NewSegmentBuilder(" ", false, nil)
	comma := wordFrag(1, "A", ",", 0.3, 0.31, true)
	comma.Kind = FragmentPunctuation
	comma.IsPunctuation = true
	comma.AttachesTo = AttachPrevious

	fragments := []Fragment{
		wordFrag(0, "A", "hi", 0.0, 0.3, true),
		comma,
		wordFrag(2, "A", "there", 0.31, 0.6, true),
	}

	view := b.Build(fragments, DefaultDiarizationFocusConfig())
	require.Equal(t, "hi, there", view.Segments[0].Text)
}

func TestAnnotate_SlowAndFastSpeaker(t *testing.T) {
	// Five words spanning a minute yields a very-slow-speaker rate (5/min).
	frags := make([]Fragment, 0, 5)
	for i := 0; i < 5; i++ {
		start := float64(i) * 15.0
		frags = append(frags, wordFrag(uint64(i), "A", "w", start, start+1, true))
	}
	a := annotate(frags, "w w w w w")
	require.True(t, a.Has(AnnoVerySlowSpeaker))

	// Five words inside half a second yields a fast-speaker rate.
	fastFrags := make([]Fragment, 0, 5)
	for i := 0; i < 5; i++ {
		start := float64(i) * 0.1
		fastFrags = append(fastFrags, wordFrag(uint64(i), "A", "w", start, start+0.05, true))
	}
	a = annotate(fastFrags, "w w w w w")
	require.True(t, a.Has(AnnoFastSpeaker))
}

func TestCompareViews_NewAndUpdatedFlags(t *testing.T) {
	b := NewSegmentBuilder(" ", false, nil)
	v1 := b.Build([]Fragment{wordFrag(0, "A", "hi", 0.0, 0.3, false)}, DefaultDiarizationFocusConfig())

	diff := CompareViews(v1, nil, " ")
	require.True(t, diff.Has(AnnoNew))

	v2 := b.Build([]Fragment{
		wordFrag(0, "A", "hi", 0.0, 0.3, false),
		wordFrag(1, "A", "there", 0.3, 0.6, false),
	}, DefaultDiarizationFocusConfig())

	diff = CompareViews(v2, &v1, " ")
	require.True(t, diff.Has(AnnoUpdatedFull))
	require.True(t, diff.Has(AnnoUpdatedStripped))
	require.False(t, diff.Has(AnnoFinalized), "partial-only view must not be flagged finalized")

	v3 := b.Build([]Fragment{
		wordFrag(0, "A", "hi", 0.0, 0.3, true),
		wordFrag(1, "A", "there", 0.3, 0.6, true),
	}, DefaultDiarizationFocusConfig())
	diff = CompareViews(v3, &v2, " ")
	require.True(t, diff.Has(AnnoUpdatedFinals))
	require.True(t, diff.Has(AnnoFinalized))
}
