package app

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickMember
	DropFrame
)

// Policy decides what happens to a subscription whose buffer is full.
// NoAction and DropFrame drop the event for that subscriber, MarkSlow drops
// it and flags the subscription as lagged, KickMember closes it.
type Policy interface {
	OnBackPressure(sub *Subscription) BackpressureAction
}

// SimplePolicy kicks slow subscribers; they resynchronize on reconnect.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(*Subscription) BackpressureAction {
	return KickMember
}
