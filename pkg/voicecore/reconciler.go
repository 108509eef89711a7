package voicecore

import (
	"regexp"
	"sort"
	"sync"
)

// reservedSpeakerPattern matches internal speaker labels reserved for the
// agent's own TTS loopback or known voiceprints, suppressed unconditionally
// — the label-pattern analogue of the teacher's audio-correlation
// EchoSuppressor (pkg/orchestrator/echo_suppression.go), expressed here
// against diarization labels instead of PCM since the reconciler never sees
// raw audio.
var reservedSpeakerPattern = regexp.MustCompile(`^__[A-Z0-9_]{2,}__$`)

// FragmentReconciler maintains the Fragment List (§4.3) under a stream of
// partial and final transcript messages. It is guarded by a single mutex
// serialising update vs read, per §5.
type FragmentReconciler struct {
	mu sync.Mutex

	list       FragmentList
	nextIndex  uint64
	watermark  float64
	focus      DiarizationFocusConfig

	// ttfb bookkeeping: true once a partial has been seen since the last
	// final watermark advance.
	sawPartialSinceWatermark bool
}

// NewFragmentReconciler constructs an empty reconciler with the given
// initial diarization focus configuration.
func NewFragmentReconciler(focus DiarizationFocusConfig) *FragmentReconciler {
	return &FragmentReconciler{focus: focus}
}

// SetDiarizationFocus updates the focus policy applied to subsequent
// updates. Already-retained fragments are not retroactively re-filtered.
func (r *FragmentReconciler) SetDiarizationFocus(focus DiarizationFocusConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.focus = focus
}

// Watermark returns the current trim watermark, in seconds.
func (r *FragmentReconciler) Watermark() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.watermark
}

// AdvanceWatermark raises the trim watermark (it is monotonic
// non-decreasing) and trims fragments with StartTime below it.
func (r *FragmentReconciler) AdvanceWatermark(t float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t <= r.watermark {
		return
	}
	r.watermark = t
	r.trimLocked()
	r.sawPartialSinceWatermark = false
}

// Snapshot returns a deep-enough copy of the live fragment list.
func (r *FragmentReconciler) Snapshot() *FragmentList {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list.Clone()
}

// UpdateResult reports what ApplyPartial/ApplyFinal observed, so the
// Session Controller can emit ttfb_metrics without re-deriving it.
type UpdateResult struct {
	List        *FragmentList
	TTFBSeconds float64 // 0 if not applicable this call
	HasTTFB     bool
}

// ApplyPartial folds a partial-transcript message's results into the live
// list: existing partials (the tail after the final prefix) are discarded
// wholesale and replaced, per §4.3.
func (r *FragmentReconciler) ApplyPartial(totalAudioSeconds float64, results []RecognitionResult) UpdateResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidates := r.filterLocked(results, false)

	finals := r.finalPrefixLocked()
	r.list.Fragments = append(finals, r.assignIndicesLocked(candidates)...)

	res := UpdateResult{List: r.list.Clone()}
	if !r.sawPartialSinceWatermark && len(candidates) > 0 {
		r.sawPartialSinceWatermark = true
		if len(candidates) > 0 {
			ttfb := (totalAudioSeconds - candidates[0].EndTime)
			if ttfb > 0 {
				res.TTFBSeconds = ttfb
				res.HasTTFB = true
			}
		}
	}
	return res
}

// ApplyFinal folds a final-transcript message's results into the live
// list: all prior partials are discarded, the new finals are spliced in,
// and the list is re-sorted by index, per §4.3.
func (r *FragmentReconciler) ApplyFinal(results []RecognitionResult) UpdateResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidates := r.filterLocked(results, true)

	finals := r.finalPrefixLocked()
	newFinals := markFinal(r.assignIndicesLocked(candidates))
	finals = append(finals, newFinals...)

	sort.SliceStable(finals, func(i, j int) bool { return finals[i].Index < finals[j].Index })
	r.list.Fragments = finals

	r.trimLocked()

	return UpdateResult{List: r.list.Clone()}
}

// filterLocked applies the reserved-speaker drop, the trim-watermark drop,
// and the diarization focus policy to incoming candidates. In retain mode
// fragments from speakers outside FocusSpeakers pass through unchanged;
// their segments are marked inactive later, by the Segment View Builder.
func (r *FragmentReconciler) filterLocked(results []RecognitionResult, final bool) []RecognitionResult {
	out := make([]RecognitionResult, 0, len(results))
	for _, res := range results {
		if reservedSpeakerPattern.MatchString(res.Speaker) {
			continue
		}
		if res.StartTime < r.watermark {
			continue
		}
		if r.focus.IgnoreSpeakers[res.Speaker] {
			continue
		}
		if r.focus.FocusMode == FocusIgnore && r.focus.FocusSpeakers[res.Speaker] {
			continue
		}
		out = append(out, res)
	}
	return out
}

func (r *FragmentReconciler) finalPrefixLocked() []Fragment {
	out := make([]Fragment, 0, len(r.list.Fragments))
	for _, f := range r.list.Fragments {
		if f.IsFinal {
			out = append(out, f)
		}
	}
	return out
}

func (r *FragmentReconciler) assignIndicesLocked(results []RecognitionResult) []Fragment {
	out := make([]Fragment, 0, len(results))
	for _, res := range results {
		f := Fragment{
			Index:           r.nextIndex,
			StartTime:       res.StartTime,
			EndTime:         res.EndTime,
			Language:        res.Language,
			Content:         res.Content,
			Speaker:         res.Speaker,
			Confidence:      res.Confidence,
			IsEndOfSentence: res.IsEndOfSentence,
			IsDisfluency:    res.IsDisfluency,
			IsPunctuation:   res.IsPunctuation,
			AttachesTo:      res.AttachesTo,
		}
		if f.IsPunctuation {
			f.Kind = FragmentPunctuation
		} else {
			f.Kind = FragmentWord
		}
		r.nextIndex++
		out = append(out, f)
	}
	// mark finality after index assignment so the caller decides it,
	// matching ApplyFinal's contract that new finals are, well, final.
	return out
}

func (r *FragmentReconciler) trimLocked() {
	kept := r.list.Fragments[:0:0]
	for _, f := range r.list.Fragments {
		if f.StartTime >= r.watermark {
			kept = append(kept, f)
		}
	}
	r.list.Fragments = kept
}

// markFinal marks every fragment in fs as final, used by ApplyFinal's
// caller-visible contract. Exposed as a helper for clarity at call sites.
func markFinal(fs []Fragment) []Fragment {
	for i := range fs {
		fs[i].IsFinal = true
	}
	return fs
}
