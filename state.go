package dompdf

// State is the progress of a single conversion.
type State int

// A conversion moves Idle → Staged → Rasterizing → Paginating → Saved,
// or to Failed from any point.
const (
	StateIdle State = iota
	StateStaged
	StateRasterizing
	StatePaginating
	StateSaved
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStaged:
		return "staged"
	case StateRasterizing:
		return "rasterizing"
	case StatePaginating:
		return "paginating"
	case StateSaved:
		return "saved"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether s ends a conversion.
func (s State) Terminal() bool {
	return s == StateSaved || s == StateFailed
}
