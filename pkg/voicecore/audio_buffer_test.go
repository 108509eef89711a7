package voicecore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRollingAudioBuffer_RejectsBadSampleWidth(t *testing.T) {
	_, err := NewRollingAudioBuffer(16000, 3, 160, 10)
	require.ErrorIs(t, err, ErrUnsupportedSampleWidth)
}

func TestRollingAudioBuffer_GetFrames_WithinWindow(t *testing.T) {
	buf, err := NewRollingAudioBuffer(16000, 2, 160, 10)
	require.NoError(t, err)

	// 12 seconds of audio at 16000Hz/2 bytes = 384000 bytes.
	buf.PutBytes(make([]byte, 16000*2*12))

	start, end := buf.RetainedWindow()
	require.InDelta(t, 2.0, start, 1e-9, "a 10s window after 12s of audio starts at t=2.0")
	require.InDelta(t, 12.0, end, 1e-9)

	// A request entirely before the retained window returns empty.
	require.Empty(t, buf.GetFrames(0.0, 1.0, 0))

	// A request fully inside the window returns the expected byte count:
	// 2 seconds * 16000 samples/s * 2 bytes/sample = 64000 bytes.
	out := buf.GetFrames(5.0, 7.0, 0)
	require.Len(t, out, 64000)
}

func TestRollingAudioBuffer_GetFrames_ClampsToRetainedWindow(t *testing.T) {
	buf, err := NewRollingAudioBuffer(16000, 2, 160, 10)
	require.NoError(t, err)
	buf.PutBytes(make([]byte, 16000*2*12))

	// Request straddling the window boundary [2.0, 12.0) clamps to it.
	out := buf.GetFrames(1.0, 5.0, 0)
	require.Len(t, out, int((5.0-2.0)*16000*2))
}

func TestRollingAudioBuffer_PutFrame_FastPath(t *testing.T) {
	buf, err := NewRollingAudioBuffer(16000, 2, 160, 10)
	require.NoError(t, err)
	frame := make([]byte, 160*2)
	buf.PutFrame(frame)

	_, end := buf.RetainedWindow()
	require.InDelta(t, 0.01, end, 1e-9)
}

func TestRollingAudioBuffer_Reset_PreservesAbsoluteClock(t *testing.T) {
	buf, err := NewRollingAudioBuffer(16000, 2, 160, 10)
	require.NoError(t, err)
	buf.PutBytes(make([]byte, 16000*2*3))

	_, endBefore := buf.RetainedWindow()
	buf.Reset()
	startAfter, endAfter := buf.RetainedWindow()

	require.InDelta(t, endBefore, startAfter, 1e-9, "Reset must not rewind the absolute frame clock")
	require.InDelta(t, endBefore, endAfter, 1e-9)
}

func TestRollingAudioBuffer_TrimsToMaxFrames(t *testing.T) {
	buf, err := NewRollingAudioBuffer(16000, 2, 160, 1) // 1 second retained
	require.NoError(t, err)

	buf.PutBytes(make([]byte, 16000*2*3)) // 3 seconds fed in

	start, end := buf.RetainedWindow()
	require.InDelta(t, 2.0, start, 1e-9)
	require.InDelta(t, 3.0, end, 1e-9)
}
