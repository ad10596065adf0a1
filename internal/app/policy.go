package app

import "github.com/mcwissink/piano-player/internal/domain"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

// FrameKind classifies outbound traffic for backpressure decisions.
type FrameKind int

const (
	// FrameTransient frames (notes, chat, room lists) can be lost; the
	// next push supersedes them.
	FrameTransient FrameKind = iota
	// FrameSnapshot frames carry room state a client cannot recover
	// without.
	FrameSnapshot
)

type Policy interface {
	OnBackpressure(kind FrameKind, sid domain.SessionID) BackpressureAction
}

// SimplePolicy drops transient frames for slow members and kicks members
// that miss a state snapshot: a client behind on snapshots stays
// inconsistent until it reconnects anyway.
type SimplePolicy struct{}

func (SimplePolicy) OnBackpressure(kind FrameKind, _ domain.SessionID) BackpressureAction {
	if kind == FrameSnapshot {
		return KickMember
	}
	return DropFrame
}
