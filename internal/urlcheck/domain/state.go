package domain

import "fmt"

// MatcherState is the lifecycle position of a regex list matcher.
//
//	Uninit -> Inited -> Loaded -> Built
//
// Failed is a sink reachable from any state on an unrecoverable load error.
type MatcherState uint8

const (
	StateUninit MatcherState = iota
	StateInited
	StateLoaded
	StateBuilt
	StateFailed
)

// String returns a stable string representation of the state.
func (s MatcherState) String() string {
	switch s {
	case StateUninit:
		return "uninit"
	case StateInited:
		return "inited"
	case StateLoaded:
		return "loaded"
	case StateBuilt:
		return "built"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("MatcherState(%d)", s)
	}
}
