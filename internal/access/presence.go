package access

import (
	"sort"
	"sync"
	"time"
)

// PresenceState describes a principal's live activity.
type PresenceState string

const (
	PresenceOffline PresenceState = "offline"
	PresenceOnline  PresenceState = "online"
	PresenceWriting PresenceState = "writing"
)

// Presence windows. A commit marks the principal writing for the write
// window; a heartbeat keeps a sessionless principal online for the
// online window.
const (
	writingWindowMs = int64(10_000)
	onlineWindowMs  = int64(45_000)
)

// PresenceInfo is a point-in-time view of one principal's activity.
type PresenceInfo struct {
	PrincipalID string        `json:"principalId"`
	State       PresenceState `json:"state"`
	Sessions    int           `json:"sessions"`
	LastSeenMs  int64         `json:"lastSeenMs"`
	LastWriteMs int64         `json:"lastWriteMs,omitempty"`
}

type presenceEntry struct {
	sessions    int
	lastSeenMs  int64
	lastWriteMs int64
}

func (e *presenceEntry) state(nowMs int64) PresenceState {
	switch {
	case e.lastWriteMs > 0 && nowMs-e.lastWriteMs < writingWindowMs:
		return PresenceWriting
	case e.sessions > 0:
		return PresenceOnline
	case e.lastSeenMs > 0 && nowMs-e.lastSeenMs < onlineWindowMs:
		return PresenceOnline
	default:
		return PresenceOffline
	}
}

// Presence tracks which principals hold live sessions and who committed
// recently. It is advisory state only and never persisted.
type Presence struct {
	mu    sync.Mutex
	nowMs func() int64
	byID  map[string]*presenceEntry
}

// NewPresence builds an empty tracker. nowMs defaults to the wall
// clock; tests inject their own.
func NewPresence(nowMs func() int64) *Presence {
	if nowMs == nil {
		nowMs = func() int64 { return time.Now().UnixMilli() }
	}
	return &Presence{nowMs: nowMs, byID: make(map[string]*presenceEntry)}
}

func (p *Presence) entry(principalID string) *presenceEntry {
	e, ok := p.byID[principalID]
	if !ok {
		e = &presenceEntry{}
		p.byID[principalID] = e
	}
	return e
}

// Attach records a new live session for the principal.
func (p *Presence) Attach(principalID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.entry(principalID)
	e.sessions++
	e.lastSeenMs = p.nowMs()
}

// Detach ends one live session.
func (p *Presence) Detach(principalID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.entry(principalID)
	if e.sessions > 0 {
		e.sessions--
	}
	e.lastSeenMs = p.nowMs()
}

// Heartbeat refreshes liveness without a session.
func (p *Presence) Heartbeat(principalID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entry(principalID).lastSeenMs = p.nowMs()
}

// MarkWriting records a successful commit by the principal.
func (p *Presence) MarkWriting(principalID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.entry(principalID)
	now := p.nowMs()
	e.lastSeenMs = now
	e.lastWriteMs = now
}

// State reports the current activity state for one principal. Unknown
// principals are offline.
func (p *Presence) State(principalID string) PresenceState {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.byID[principalID]
	if !ok {
		return PresenceOffline
	}
	return e.state(p.nowMs())
}

// Snapshot lists every known principal sorted by id.
func (p *Presence) Snapshot() []PresenceInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.nowMs()
	out := make([]PresenceInfo, 0, len(p.byID))
	for id, e := range p.byID {
		out = append(out, PresenceInfo{
			PrincipalID: id,
			State:       e.state(now),
			Sessions:    e.sessions,
			LastSeenMs:  e.lastSeenMs,
			LastWriteMs: e.lastWriteMs,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PrincipalID < out[j].PrincipalID })
	return out
}
