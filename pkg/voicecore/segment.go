package voicecore

import (
	"strconv"
	"strings"
)

// LanguageDetector is the Segment View Builder's injected seam for
// best-effort language-tag backfill (§4.4, "Language backfill"). The
// shipped LinguaLanguageDetector wraps pemistahl/lingua-go; a caller that
// does not want the dependency pulled into its decision path may pass nil,
// in which case segments keep whatever (possibly empty) language tag their
// fragments carry.
type LanguageDetector interface {
	Detect(text string) (tag string, ok bool)
}

// SegmentBuilder is the pure function `Build(fragments, focusConfig) →
// SegmentView` of §4.4. It holds no mutable state of its own beyond the
// injected delimiter/detector, which never change the ordering or finality
// of any fragment — only display annotation.
type SegmentBuilder struct {
	Delimiter     string
	EmitSentences bool
	Detector      LanguageDetector
}

// NewSegmentBuilder constructs a builder. delimiter is normally the
// language pack's word delimiter from recognition-started; detector may be
// nil to skip language backfill entirely.
func NewSegmentBuilder(delimiter string, emitSentences bool, detector LanguageDetector) *SegmentBuilder {
	if delimiter == "" {
		delimiter = " "
	}
	return &SegmentBuilder{Delimiter: delimiter, EmitSentences: emitSentences, Detector: detector}
}

// Build groups fragments (already in index order) into speaker segments,
// annotates each, and accumulates the view's aggregate counters. It
// allocates its own output and never mutates fragments.
func (b *SegmentBuilder) Build(fragments []Fragment, focus DiarizationFocusConfig) SegmentView {
	view := SegmentView{LastActiveSegmentIdx: -1}
	if len(fragments) == 0 {
		return view
	}

	groups := b.group(fragments)
	view.Segments = make([]SpeakerSegment, 0, len(groups))

	for _, g := range groups {
		seg := b.buildSegment(g, focus)
		view.Segments = append(view.Segments, seg)

		view.SegmentCount++
		for _, f := range g {
			if f.IsFinal {
				view.FinalCount++
			} else {
				view.PartialCount++
			}
		}
		if seg.IsActive {
			view.LastActiveSegmentIdx = view.SegmentCount - 1
		}
	}

	view.StartTime = fragments[0].StartTime
	view.EndTime = fragments[len(fragments)-1].EndTime
	return view
}

// group partitions fragments into speaker runs, further split on sentence
// boundaries (after a final+is_end_of_sentence fragment) when EmitSentences
// is set, per §4.4's algorithm.
func (b *SegmentBuilder) group(fragments []Fragment) [][]Fragment {
	var groups [][]Fragment
	var current []Fragment

	for _, f := range fragments {
		if len(current) > 0 && current[len(current)-1].Speaker != f.Speaker {
			groups = append(groups, current)
			current = nil
		}
		current = append(current, f)
		if b.EmitSentences && f.IsFinal && f.IsEndOfSentence {
			groups = append(groups, current)
			current = nil
		}
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

func (b *SegmentBuilder) buildSegment(g []Fragment, focus DiarizationFocusConfig) SpeakerSegment {
	seg := SpeakerSegment{
		Speaker:   g[0].Speaker,
		Fragments: g,
		IsActive:  segmentIsActive(g[0].Speaker, focus),
		Language:  dominantLanguage(g),
	}

	if seg.Language == "" && b.Detector != nil {
		if tag, ok := b.Detector.Detect(renderText(g, b.Delimiter, true, true)); ok {
			seg.Language = tag
		}
	}

	seg.Text = renderText(g, b.Delimiter, true, true)
	seg.Annotations = annotate(g, seg.Text)
	return seg
}

// segmentIsActive applies the diarization focus policy (§4.3/§4.4): in
// retain mode a speaker outside FocusSpeakers (when any are configured) is
// kept but marked inactive; in ignore mode every fragment that survived the
// reconciler's filter is, by construction, outside FocusSpeakers, so it is
// always active.
func segmentIsActive(speaker string, focus DiarizationFocusConfig) bool {
	if focus.FocusMode == FocusIgnore {
		return true
	}
	if len(focus.FocusSpeakers) == 0 {
		return true
	}
	return focus.FocusSpeakers[speaker]
}

func dominantLanguage(g []Fragment) string {
	lang := g[0].Language
	for _, f := range g[1:] {
		if f.Language != lang {
			return ""
		}
	}
	return lang
}

// renderText joins fragment contents with delim, stripping a leading
// fragment that attaches to the previous run and a trailing fragment that
// attaches to the next run (when stripLeading/stripTrailing), and omitting
// the delimiter between any adjacent pair where either side declares an
// attachment relation to the other.
func renderText(g []Fragment, delim string, stripLeading, stripTrailing bool) string {
	render := g
	if stripLeading && len(render) > 0 && render[0].AttachesTo == AttachPrevious {
		render = render[1:]
	}
	if stripTrailing && len(render) > 0 && render[len(render)-1].AttachesTo == AttachNext {
		render = render[:len(render)-1]
	}
	if len(render) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(render[0].Content)
	for i := 1; i < len(render); i++ {
		if render[i-1].AttachesTo == AttachNext || render[i].AttachesTo == AttachPrevious {
			sb.WriteString(render[i].Content)
			continue
		}
		sb.WriteString(delim)
		sb.WriteString(render[i].Content)
	}
	return sb.String()
}

// wordsOnlyText renders only FragmentWord-kind fragments, used by the
// view-diff's "words-only text" dimension.
func wordsOnlyText(g []Fragment, delim string) string {
	words := make([]Fragment, 0, len(g))
	for _, f := range g {
		if f.Kind == FragmentWord {
			words = append(words, f)
		}
	}
	return renderText(words, delim, false, false)
}

// timingString renders a per-word timing fingerprint used to detect
// word-timing-only changes (e.g. a partial's end_time revised without its
// content changing).
func timingString(segs []SpeakerSegment) string {
	var sb strings.Builder
	for _, s := range segs {
		for _, f := range s.Fragments {
			sb.WriteString(f.Content)
			sb.WriteByte(':')
			sb.WriteString(formatFloat(f.StartTime))
			sb.WriteByte('-')
			sb.WriteString(formatFloat(f.EndTime))
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}

// annotate computes a segment's AnnotationSet per §3/§4.4.
func annotate(g []Fragment, text string) AnnotationSet {
	var a AnnotationSet

	if text == "" {
		a.Set(AnnoNoText)
	}

	onlyPunct := true
	hasPartial, hasFinal, hasDisfluency := false, false, false
	for _, f := range g {
		if f.Kind != FragmentPunctuation {
			onlyPunct = false
		}
		if f.IsFinal {
			hasFinal = true
		} else {
			hasPartial = true
		}
		if f.IsDisfluency {
			hasDisfluency = true
		}
	}
	if onlyPunct {
		a.Set(AnnoOnlyPunctuation)
	}
	if hasPartial {
		a.Set(AnnoHasPartial)
	}
	if hasFinal {
		a.Set(AnnoHasFinal)
	}
	if hasDisfluency {
		a.Set(AnnoHasDisfluency)
	}

	first, last := g[0], g[len(g)-1]
	if first.IsFinal {
		a.Set(AnnoStartsWithFinal)
	}
	if last.IsFinal {
		a.Set(AnnoEndsWithFinal)
		if last.IsEndOfSentence {
			a.Set(AnnoEndsWithEndOfSentence)
		}
	}
	if last.IsPunctuation {
		a.Set(AnnoEndsWithPunctuation)
	}
	if first.IsDisfluency {
		a.Set(AnnoStartsWithDisfluency)
	}
	if last.IsDisfluency {
		a.Set(AnnoEndsWithDisfluency)
	}

	if rate, ok := wordsPerMinute(g); ok {
		switch {
		case rate < 30:
			a.Set(AnnoVerySlowSpeaker)
		case rate < 80:
			a.Set(AnnoSlowSpeaker)
		case rate > 350:
			a.Set(AnnoFastSpeaker)
		}
	}

	return a
}

// wordsPerMinute classifies speaking rate over the last five word fragments
// of a segment, per §4.4. Fewer than five word fragments yields no
// classification.
func wordsPerMinute(g []Fragment) (float64, bool) {
	words := make([]Fragment, 0, len(g))
	for _, f := range g {
		if f.Kind == FragmentWord {
			words = append(words, f)
		}
	}
	if len(words) < 5 {
		return 0, false
	}
	last5 := words[len(words)-5:]
	dur := (last5[len(last5)-1].EndTime - last5[0].StartTime) / 60.0
	if dur <= 0 {
		return 0, false
	}
	return 5.0 / dur, true
}

// CompareViews computes the view-diff AnnotationSet of §4.4 between a new
// view and its predecessor (nil if there is none).
func CompareViews(newView SegmentView, oldView *SegmentView, delim string) AnnotationSet {
	var a AnnotationSet

	if oldView == nil {
		a.Set(AnnoNew)
	} else {
		newFull, oldFull := fullText(newView, delim), fullText(*oldView, delim)
		if newFull != oldFull {
			a.Set(AnnoUpdatedFull)
		}
		if strings.ToLower(newFull) != strings.ToLower(oldFull) {
			a.Set(AnnoUpdatedFullLowercase)
		}

		newWords, oldWords := wordsOnlyFullText(newView, delim), wordsOnlyFullText(*oldView, delim)
		if newWords != oldWords {
			a.Set(AnnoUpdatedStripped)
		}
		if strings.ToLower(newWords) != strings.ToLower(oldWords) {
			a.Set(AnnoUpdatedStrippedLowercase)
		}

		if timingString(newView.Segments) != timingString(oldView.Segments) {
			a.Set(AnnoUpdatedWordTimings)
		}
		if newView.FinalCount != oldView.FinalCount {
			a.Set(AnnoUpdatedFinals)
		}
		if newView.PartialCount != oldView.PartialCount {
			a.Set(AnnoUpdatedPartials)
		}
		if speakerSet(newView) != speakerSet(oldView) {
			a.Set(AnnoUpdatedSpeakers)
		}
	}

	if newView.PartialCount == 0 {
		a.Set(AnnoFinalized)
	}

	return a
}

func fullText(v SegmentView, delim string) string {
	texts := make([]string, 0, len(v.Segments))
	for _, s := range v.Segments {
		texts = append(texts, s.Text)
	}
	return strings.Join(texts, delim)
}

func wordsOnlyFullText(v SegmentView, delim string) string {
	texts := make([]string, 0, len(v.Segments))
	for _, s := range v.Segments {
		texts = append(texts, wordsOnlyText(s.Fragments, delim))
	}
	return strings.Join(texts, delim)
}

func speakerSet(v *SegmentView) string {
	if v == nil {
		return ""
	}
	speakers := make([]string, 0, len(v.Segments))
	for _, s := range v.Segments {
		speakers = append(speakers, s.Speaker)
	}
	return strings.Join(speakers, ",")
}
