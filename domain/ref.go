package domain

// Ref is a relation that is either a bare foreign key or the resolved entity.
// The persistence layer decides which one it hands over; callers only ask Get.
type Ref[T any] struct {
	id    string
	value *T
}

// RefByID builds an unresolved reference.
func RefByID[T any](id string) Ref[T] {
	return Ref[T]{id: id}
}

// Resolved builds a reference whose entity has been loaded.
func Resolved[T any](id string, value T) Ref[T] {
	return Ref[T]{id: id, value: &value}
}

func (r Ref[T]) ID() string { return r.id }

// Get returns the entity when the reference is resolved.
func (r Ref[T]) Get() (T, bool) {
	if r.value == nil {
		var zero T
		return zero, false
	}
	return *r.value, true
}

func (r Ref[T]) IsResolved() bool { return r.value != nil }

// IsZero reports an absent relation (no id at all).
func (r Ref[T]) IsZero() bool { return r.id == "" }
