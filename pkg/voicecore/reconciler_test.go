package voicecore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFragmentReconciler_ApplyPartial_ReplacesTail(t *testing.T) {
	r := NewFragmentReconciler(DefaultDiarizationFocusConfig())

	res := r.ApplyPartial(1.0, []RecognitionResult{
		{Content: "hello", StartTime: 0.0, EndTime: 0.5, Speaker: "A"},
	})
	require.Equal(t, 1, res.List.Len())
	require.False(t, res.List.Fragments[0].IsFinal)

	// A second partial entirely replaces the first's tail.
	res = r.ApplyPartial(1.5, []RecognitionResult{
		{Content: "hello", StartTime: 0.0, EndTime: 0.5, Speaker: "A"},
		{Content: "there", StartTime: 0.5, EndTime: 1.0, Speaker: "A"},
	})
	require.Equal(t, 2, res.List.Len())
	require.Equal(t, "there", res.List.Fragments[1].Content)
}

func TestFragmentReconciler_ApplyFinal_MarksFinalAndSorts(t *testing.T) {
	r := NewFragmentReconciler(DefaultDiarizationFocusConfig())

	r.ApplyPartial(1.0, []RecognitionResult{
		{Content: "hi", StartTime: 0.0, EndTime: 0.3, Speaker: "A"},
	})

	res := r.ApplyFinal([]RecognitionResult{
		{Content: "hi", StartTime: 0.0, EndTime: 0.3, Speaker: "A"},
	})
	require.Equal(t, 1, res.List.Len())
	require.True(t, res.List.Fragments[0].IsFinal, "fragments spliced in by ApplyFinal must be marked final")

	// A further partial is appended after the final prefix.
	res = r.ApplyPartial(1.5, []RecognitionResult{
		{Content: "there", StartTime: 0.3, EndTime: 0.8, Speaker: "A"},
	})
	require.Equal(t, 2, res.List.Len())
	require.True(t, res.List.Fragments[0].IsFinal)
	require.False(t, res.List.Fragments[1].IsFinal)

	// Indices are monotonic increasing in the order fragments were assigned.
	res = r.ApplyFinal([]RecognitionResult{
		{Content: "there", StartTime: 0.3, EndTime: 0.8, Speaker: "A"},
	})
	require.Len(t, res.List.Fragments, 2)
	require.Less(t, res.List.Fragments[0].Index, res.List.Fragments[1].Index)
}

func TestFragmentReconciler_ReservedSpeakerSuppressed(t *testing.T) {
	r := NewFragmentReconciler(DefaultDiarizationFocusConfig())

	res := r.ApplyPartial(1.0, []RecognitionResult{
		{Content: "echo", StartTime: 0.0, EndTime: 0.3, Speaker: "__AGENT_TTS__"},
		{Content: "real", StartTime: 0.0, EndTime: 0.3, Speaker: "A"},
	})
	require.Equal(t, 1, res.List.Len())
	require.Equal(t, "real", res.List.Fragments[0].Content)
}

func TestFragmentReconciler_FocusIgnoreDropsSpeaker(t *testing.T) {
	focus := DiarizationFocusConfig{
		FocusMode:     FocusIgnore,
		FocusSpeakers: map[string]bool{"B": true},
	}
	r := NewFragmentReconciler(focus)

	res := r.ApplyPartial(1.0, []RecognitionResult{
		{Content: "kept", StartTime: 0.0, EndTime: 0.3, Speaker: "A"},
		{Content: "dropped", StartTime: 0.0, EndTime: 0.3, Speaker: "B"},
	})
	require.Equal(t, 1, res.List.Len())
	require.Equal(t, "kept", res.List.Fragments[0].Content)
}

func TestFragmentReconciler_WatermarkDropsAndTrims(t *testing.T) {
	r := NewFragmentReconciler(DefaultDiarizationFocusConfig())

	r.ApplyFinal([]RecognitionResult{
		{Content: "old", StartTime: 0.0, EndTime: 1.0, Speaker: "A"},
		{Content: "new", StartTime: 1.0, EndTime: 2.0, Speaker: "A"},
	})
	require.Equal(t, float64(0), r.Watermark())

	r.AdvanceWatermark(1.0)
	require.Equal(t, 1.0, r.Watermark())

	snap := r.Snapshot()
	require.Len(t, snap.Fragments, 1)
	require.Equal(t, "new", snap.Fragments[0].Content)

	// A result whose StartTime is below the watermark is dropped on arrival.
	res := r.ApplyPartial(3.0, []RecognitionResult{
		{Content: "stale", StartTime: 0.5, EndTime: 0.8, Speaker: "A"},
	})
	require.Len(t, res.List.Fragments, 1)
	require.Equal(t, "new", res.List.Fragments[0].Content)
}

func TestFragmentReconciler_TTFBReportedOncePerWatermarkCycle(t *testing.T) {
	r := NewFragmentReconciler(DefaultDiarizationFocusConfig())

	res := r.ApplyPartial(2.0, []RecognitionResult{
		{Content: "hi", StartTime: 0.0, EndTime: 1.0, Speaker: "A"},
	})
	require.True(t, res.HasTTFB)
	require.InDelta(t, 1.0, res.TTFBSeconds, 1e-9)

	res = r.ApplyPartial(2.2, []RecognitionResult{
		{Content: "hi", StartTime: 0.0, EndTime: 1.0, Speaker: "A"},
		{Content: "there", StartTime: 1.0, EndTime: 1.2, Speaker: "A"},
	})
	require.False(t, res.HasTTFB, "ttfb only reported once per watermark cycle")

	r.AdvanceWatermark(1.2)

	res = r.ApplyPartial(3.0, []RecognitionResult{
		{Content: "again", StartTime: 1.2, EndTime: 2.0, Speaker: "A"},
	})
	require.True(t, res.HasTTFB, "a new watermark cycle resets the ttfb-seen flag")
}

func TestFragmentList_CloneIsIndependent(t *testing.T) {
	r := NewFragmentReconciler(DefaultDiarizationFocusConfig())
	r.ApplyFinal([]RecognitionResult{{Content: "a", StartTime: 0, EndTime: 0.1, Speaker: "A"}})

	snap := r.Snapshot()
	snap.Fragments[0].Content = "mutated"

	snap2 := r.Snapshot()
	require.Equal(t, "a", snap2.Fragments[0].Content, "mutating a snapshot must not affect the reconciler's live state")
}
