package routing

// ErrorKind classifies a failed route query.
type ErrorKind int

const (
	KindInvalidInput ErrorKind = iota + 1
	KindGraphEmpty
	KindUnresolvedEndpoint
	KindNoPathFound
	KindNotReady
	KindSearchBudget
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid input"
	case KindGraphEmpty:
		return "graph is empty"
	case KindUnresolvedEndpoint:
		return "endpoint could not be resolved"
	case KindNoPathFound:
		return "no path found"
	case KindNotReady:
		return "routing graph not ready"
	case KindSearchBudget:
		return "search budget exceeded"
	}
	return "unknown query error"
}

// QueryError is returned by FindRoute. Compare against the Err* values with
// errors.Is; callers that need the kind can use errors.As.
type QueryError struct {
	Kind ErrorKind
}

func (e *QueryError) Error() string { return e.Kind.String() }

var (
	ErrInvalidInput = &QueryError{Kind: KindInvalidInput}
	ErrGraphEmpty   = &QueryError{Kind: KindGraphEmpty}
	// ErrUnresolvedEndpoint is reserved for resolvers with a distance cap.
	// Nearest-node resolution over a non-empty graph always succeeds.
	ErrUnresolvedEndpoint = &QueryError{Kind: KindUnresolvedEndpoint}
	ErrNoPathFound        = &QueryError{Kind: KindNoPathFound}
	ErrNotReady           = &QueryError{Kind: KindNotReady}
	ErrSearchBudget       = &QueryError{Kind: KindSearchBudget}
)
