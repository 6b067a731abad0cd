package pipeline

// State is a step of the per-file state machine:
//
//	Received → Parsed → HeaderFiltered → Classified → Standardized → Done
//
// Any step may end in Failed instead.
type State int

const (
	Received State = iota
	Parsed
	HeaderFiltered
	Classified
	Standardized
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Received:
		return "received"
	case Parsed:
		return "parsed"
	case HeaderFiltered:
		return "header_filtered"
	case Classified:
		return "classified"
	case Standardized:
		return "standardized"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
