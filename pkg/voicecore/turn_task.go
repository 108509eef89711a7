package voicecore

import "sync"

// TurnTaskProcessor gates end-of-turn emission on the completion of every
// asynchronous task scheduled within the current turn (the smart-turn
// predicate call, the adaptive timer, any user-supplied pre-emission hook),
// per §4.6. It is the Go-native re-expression of the teacher's
// sttGeneration counter in managed_stream.go: a task still pending when the
// turn moves on is cancelled by Increment, and its completion, should it
// arrive anyway, is silently ignored.
type TurnTaskProcessor struct {
	mu      sync.Mutex
	turnID  int64
	pending map[string]func()
	fired   bool
	onDone  func(turnID int64)
}

// NewTurnTaskProcessor constructs a processor at turn 0. onDone fires the
// moment the last pending task of the current turn completes; it fires
// again within the same turn only after a later Schedule re-arms it.
func NewTurnTaskProcessor(onDone func(turnID int64)) *TurnTaskProcessor {
	return &TurnTaskProcessor{pending: make(map[string]func()), onDone: onDone}
}

// TurnID returns the current turn id.
func (p *TurnTaskProcessor) TurnID() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.turnID
}

// Schedule registers a task named name for the current turn, cancelling
// (invoking cancel of) any previously scheduled task of the same name. It
// returns the turn id the task was scheduled under, to be passed back to
// Complete.
func (p *TurnTaskProcessor) Schedule(name string, cancel func()) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prev, ok := p.pending[name]; ok && prev != nil {
		prev()
	}
	p.pending[name] = cancel
	p.fired = false
	return p.turnID
}

// Complete marks task name (scheduled under turnID) done. If turnID is no
// longer current, the completion is ignored — the defining behaviour of
// §4.6's "ignored on arrival" contract. Once every pending task for the
// current turn has completed, onDone fires once; further Completes do not
// fire it again until a Schedule re-arms it. A name that is not pending is
// treated like a completed task, so it can fire onDone on an empty set.
func (p *TurnTaskProcessor) Complete(turnID int64, name string) {
	p.mu.Lock()
	if turnID != p.turnID {
		p.mu.Unlock()
		return
	}
	delete(p.pending, name)
	empty := len(p.pending) == 0 && !p.fired
	if empty {
		p.fired = true
	}
	tid := p.turnID
	onDone := p.onDone
	p.mu.Unlock()

	if empty && onDone != nil {
		onDone(tid)
	}
}

// Pending reports whether any task is still outstanding for the current
// turn.
func (p *TurnTaskProcessor) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending) > 0
}

// Reset cancels every pending task for the current turn without advancing
// the turn id.
func (p *TurnTaskProcessor) Reset() {
	p.mu.Lock()
	pending := p.pending
	p.pending = make(map[string]func())
	p.fired = false
	p.mu.Unlock()

	for _, cancel := range pending {
		if cancel != nil {
			cancel()
		}
	}
}

// Increment bumps the turn id, cancelling every pending task of the
// outgoing turn so its eventual completion (if any) is both cancelled and,
// were it to arrive anyway, ignored by Complete's turn-id check.
func (p *TurnTaskProcessor) Increment() int64 {
	p.mu.Lock()
	pending := p.pending
	p.pending = make(map[string]func())
	p.turnID++
	p.fired = false
	next := p.turnID
	p.mu.Unlock()

	for _, cancel := range pending {
		if cancel != nil {
			cancel()
		}
	}
	return next
}
