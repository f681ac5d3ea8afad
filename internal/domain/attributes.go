package domain

// Attributes is the enrichment attribute set of one event.
// A nil field means the attribute is absent.
type Attributes struct {
	City         *string `json:"city"`
	Country      *string `json:"country"`
	GroupMembers *int64  `json:"group_members"`
	GroupEvents  *int32  `json:"group_events"`
}

// IsEmpty reports whether every attribute is absent
func (a Attributes) IsEmpty() bool {
	return a.City == nil && a.Country == nil && a.GroupMembers == nil && a.GroupEvents == nil
}

// WithGroup returns a copy of a with the group level attributes taken from g
func (a Attributes) WithGroup(g Attributes) Attributes {
	a.GroupMembers = g.GroupMembers
	a.GroupEvents = g.GroupEvents
	return a
}

// LookupStatus is the outcome of resolving attributes for one key
type LookupStatus int

const (
	LookupNotFound LookupStatus = iota
	LookupFound
	LookupError
)

func (s LookupStatus) String() string {
	switch s {
	case LookupFound:
		return "found"
	case LookupNotFound:
		return "not_found"
	case LookupError:
		return "error"
	default:
		return "unknown"
	}
}

// LookupResult carries attributes together with how they were obtained
type LookupResult struct {
	Status     LookupStatus
	Attributes Attributes
	Reason     string
}

// Found builds a successful lookup result
func Found(attrs Attributes) LookupResult {
	return LookupResult{Status: LookupFound, Attributes: attrs}
}

// NotFound builds a lookup result for a key without data
func NotFound() LookupResult {
	return LookupResult{Status: LookupNotFound}
}

// LookupFailed builds a lookup result for a failed request
func LookupFailed(reason string) LookupResult {
	return LookupResult{Status: LookupError, Reason: reason}
}

// WriteStatus is the outcome of persisting one record
type WriteStatus int

const (
	WriteCommitted WriteStatus = iota
	WriteDuplicate
	WriteFailed
)

func (s WriteStatus) String() string {
	switch s {
	case WriteCommitted:
		return "committed"
	case WriteDuplicate:
		return "duplicate"
	case WriteFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// WriteResult is the status returned by a storage sink for one insert
type WriteResult struct {
	Status  WriteStatus
	Message string
}

// OK reports whether the record can be considered stored
func (w WriteResult) OK() bool {
	return w.Status == WriteCommitted || w.Status == WriteDuplicate
}
