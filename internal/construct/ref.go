package construct

// Ref points at a construct either by id or by a construct the caller
// already holds. Operations that accept a Ref normalize it to an id with
// Ref.ID before doing anything else, so both forms behave identically and a
// stale handle is never trusted over the store.
type Ref struct {
	id string
}

// ByID refers to a construct by its id.
func ByID(id string) Ref {
	return Ref{id: id}
}

// Resolved refers to a construct the caller already holds.
func Resolved(c *Construct) Ref {
	if c == nil {
		return Ref{}
	}
	return Ref{id: c.ID()}
}

// ID returns the referenced construct id, or "" for the zero Ref.
func (r Ref) ID() string {
	return r.id
}
