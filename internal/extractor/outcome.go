package extractor

import "errors"

type outcomeKind uint8

const (
	outcomeFound outcomeKind = iota
	outcomeNotFound
	outcomeFailed
)

// Outcome is the tagged result of a backend call: a value, a definitive
// "not found", or a failure.
type Outcome[V any] struct {
	kind  outcomeKind
	value V
	err   error
}

// Found wraps a resolved value.
func Found[V any](value V) Outcome[V] {
	return Outcome[V]{kind: outcomeFound, value: value}
}

// NotFound reports that the backend definitively has no answer.
func NotFound[V any]() Outcome[V] {
	return Outcome[V]{kind: outcomeNotFound}
}

// Failed reports a failure that must not be cached.
func Failed[V any](err error) Outcome[V] {
	if err == nil {
		err = errors.New("extractor: backend failed without detail")
	}
	return Outcome[V]{kind: outcomeFailed, err: err}
}

// Value returns the resolved value and whether the outcome is Found.
func (o Outcome[V]) Value() (V, bool) {
	return o.value, o.kind == outcomeFound
}

// IsNotFound reports whether the outcome is NotFound.
func (o Outcome[V]) IsNotFound() bool {
	return o.kind == outcomeNotFound
}

// Err returns the failure detail, or nil.
func (o Outcome[V]) Err() error {
	if o.kind != outcomeFailed {
		return nil
	}
	return o.err
}
