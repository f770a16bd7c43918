package domain

type DrawerState int

const (
	DrawerClosed DrawerState = iota
	DrawerOpening
	DrawerOpen
	DrawerClosing
)

func (s DrawerState) String() string {
	switch s {
	case DrawerClosed:
		return "closed"
	case DrawerOpening:
		return "opening"
	case DrawerOpen:
		return "open"
	case DrawerClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// LineState tracks one cart line inside the update orchestrator. A request
// for a line that is not Idle is Blocked: it is rejected before anything is
// sent and never recorded here.
type LineState int

const (
	LineIdle LineState = iota
	LinePending
	LineReconciling
)

func (s LineState) String() string {
	switch s {
	case LineIdle:
		return "idle"
	case LinePending:
		return "pending"
	case LineReconciling:
		return "reconciling"
	default:
		return "unknown"
	}
}
