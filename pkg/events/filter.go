package events

// Filter selects records from a single channel's decoded stream and assigns
// each delivered record a local ordinal. A Filter belongs to one
// subscription and is not safe for concurrent use.
type Filter struct {
	query Query
	next  uint64
}

// NewFilter returns a filter for q.
func NewFilter(q Query) *Filter {
	return &Filter{query: q}
}

// Apply reports whether raw passes the filter and, if so, returns the
// record to deliver with its local ordinal.
//
// The handshake event never passes. When StartID is non-zero, records
// without an id or with a lower id are discarded.
func (f *Filter) Apply(raw Raw) (Record, bool) {
	if raw.Type == APIVersion {
		return Record{}, false
	}
	if raw.Channel != f.query.Channel {
		return Record{}, false
	}
	if f.query.Type != All && raw.Type != f.query.Type {
		return Record{}, false
	}
	if f.query.StartID > 0 && (!raw.HasID || raw.ID < f.query.StartID) {
		return Record{}, false
	}

	rec := Record{
		Idx:     f.next,
		ID:      raw.ID,
		Channel: raw.Channel,
		Type:    raw.Type,
		Name:    raw.Name,
		Payload: raw.Payload,
	}
	f.next++
	return rec, true
}

// Delivered returns how many records have passed the filter.
func (f *Filter) Delivered() uint64 {
	return f.next
}
