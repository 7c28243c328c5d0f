package common

type SessionState uint

const (
	NodesView SessionState = iota
	ActivityView
)

func (s SessionState) Next() SessionState {
	if s == ActivityView {
		return NodesView
	}
	return s + 1
}

func (s SessionState) String() string {
	switch s {
	case NodesView:
		return "nodes"
	case ActivityView:
		return "activity"
	}
	return "unknown"
}
