package voicecore

import "sync"

// RollingAudioBuffer retains the last W seconds of audio in frame-sized
// chunks indexed by absolute frame number, so a caller (e.g. the smart-turn
// predicate) can slice a time range without the core ever touching a file
// or a playback device — grounded on the teacher's audioBuf rolling-window
// trim logic in managed_stream.go (ms.audioBuf, the "keep only last 1.5s"
// trim), generalised into its own mutex-guarded component per §4.7.
type RollingAudioBuffer struct {
	mu sync.Mutex

	sampleRate int
	sampleWidth int
	frameSize  int
	maxFrames  int

	tail []byte

	frames      [][]byte
	firstFrameN uint64 // absolute frame number of frames[0]
	framesSeen  uint64 // total frames ever produced
}

// NewRollingAudioBuffer constructs a buffer. sampleWidth must be 1 or 2.
func NewRollingAudioBuffer(sampleRate, sampleWidth, frameSize int, totalSeconds float64) (*RollingAudioBuffer, error) {
	if sampleWidth != 1 && sampleWidth != 2 {
		return nil, ErrUnsupportedSampleWidth
	}
	if sampleRate <= 0 || frameSize <= 0 {
		return nil, ErrInvalidConfig
	}
	maxFrames := int(totalSeconds * float64(sampleRate) / float64(frameSize))
	if maxFrames < 1 {
		maxFrames = 1
	}
	return &RollingAudioBuffer{
		sampleRate:  sampleRate,
		sampleWidth: sampleWidth,
		frameSize:   frameSize,
		maxFrames:   maxFrames,
	}, nil
}

// PutBytes accumulates data in a tail buffer and moves complete frames into the
// ring as they become available.
func (b *RollingAudioBuffer) PutBytes(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tail = append(b.tail, data...)
	frameBytes := b.frameSize * b.sampleWidth
	for len(b.tail) >= frameBytes {
		frame := make([]byte, frameBytes)
		copy(frame, b.tail[:frameBytes])
		b.tail = b.tail[frameBytes:]
		b.pushFrameLocked(frame)
	}
}

// PutFrame is the fast path for an already frame-sized, frame-aligned chunk.
func (b *RollingAudioBuffer) PutFrame(frame []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := make([]byte, len(frame))
	copy(cp, frame)
	b.pushFrameLocked(cp)
}

func (b *RollingAudioBuffer) pushFrameLocked(frame []byte) {
	b.frames = append(b.frames, frame)
	b.framesSeen++
	if len(b.frames) > b.maxFrames {
		b.frames = b.frames[1:]
		b.firstFrameN++
	}
}

// GetFrames translates [startTime, endTime) to absolute frame indices,
// clamps to the retained window, and returns the concatenated bytes. A
// request entirely outside the window returns an empty (non-nil) slice.
// fadeOut, if > 0, applies a linear fade-out over the trailing fadeOut
// seconds of the returned slice; if fadeOut exceeds the slice length no
// fade is applied.
func (b *RollingAudioBuffer) GetFrames(startTime, endTime float64, fadeOut float64) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.frames) == 0 || endTime <= startTime {
		return []byte{}
	}

	frameDuration := float64(b.frameSize) / float64(b.sampleRate)
	startFrame := uint64(startTime / frameDuration)
	endFrame := uint64(endTime / frameDuration)

	windowStart := b.firstFrameN
	windowEnd := b.firstFrameN + uint64(len(b.frames))

	if endFrame <= windowStart || startFrame >= windowEnd {
		return []byte{}
	}
	if startFrame < windowStart {
		startFrame = windowStart
	}
	if endFrame > windowEnd {
		endFrame = windowEnd
	}
	if startFrame >= endFrame {
		return []byte{}
	}

	lo := int(startFrame - b.firstFrameN)
	hi := int(endFrame - b.firstFrameN)

	out := make([]byte, 0, (hi-lo)*b.frameSize*b.sampleWidth)
	for i := lo; i < hi; i++ {
		out = append(out, b.frames[i]...)
	}

	if fadeOut > 0 {
		applyFadeOut(out, b.sampleRate, b.sampleWidth, fadeOut)
	}

	return out
}

// RetainedWindow returns the [start, end) absolute-time extent (seconds
// from session start) currently spanned by the buffer's retained frames,
// derived from the absolute frame counters. A caller wanting "the last N
// seconds" slices [end-N, end).
func (b *RollingAudioBuffer) RetainedWindow() (start, end float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	frameDuration := float64(b.frameSize) / float64(b.sampleRate)
	return float64(b.firstFrameN) * frameDuration, float64(b.firstFrameN+uint64(len(b.frames))) * frameDuration
}

// Reset clears the ring but preserves the absolute frame counter, so
// subsequent GetFrames calls never see time rewind.
func (b *RollingAudioBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.firstFrameN += uint64(len(b.frames))
	b.frames = nil
	b.tail = nil
}

// applyFadeOut multiplies the final fadeOutSeconds of 16-bit PCM samples in
// place by a linear envelope from 1.0 down to 0.0, to avoid discontinuity
// artefacts at a slice boundary. Non-16-bit widths are left untouched: the
// fade is a cosmetic smoothing step, not required for any invariant.
func applyFadeOut(pcm []byte, sampleRate, sampleWidth int, fadeOutSeconds float64) {
	if sampleWidth != 2 {
		return
	}
	totalSamples := len(pcm) / 2
	fadeSamples := int(fadeOutSeconds * float64(sampleRate))
	if fadeSamples <= 0 {
		return
	}
	if fadeSamples > totalSamples {
		return
	}
	start := totalSamples - fadeSamples
	for i := 0; i < fadeSamples; i++ {
		gain := 1.0 - float64(i)/float64(fadeSamples)
		idx := (start + i) * 2
		sample := int16(uint16(pcm[idx]) | uint16(pcm[idx+1])<<8)
		scaled := int16(float64(sample) * gain)
		pcm[idx] = byte(scaled)
		pcm[idx+1] = byte(scaled >> 8)
	}
}
