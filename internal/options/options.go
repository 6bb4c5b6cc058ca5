// Package options implements the generic functional option pattern shared by
// the configurable constructors in this module.
package options

// Option configures a target of type T. Implementations report invalid
// settings through the returned error.
type Option[T any] interface {
	apply(T) error
}

// Func adapts a plain function into an Option.
type Func[T any] func(T) error

// apply implements the Option interface.
func (f Func[T]) apply(target T) error {
	return f(target)
}

// New creates an option from a function that can reject its input.
func New[T any](fn func(T) error) Func[T] {
	return Func[T](fn)
}

// NoError creates an option from a function that cannot fail.
func NoError[T any](fn func(T)) Func[T] {
	return func(target T) error {
		fn(target)
		return nil
	}
}

// Apply applies options to the target in order and stops at the first error.
func Apply[T any](target T, opts ...Option[T]) error {
	for _, opt := range opts {
		if err := opt.apply(target); err != nil {
			return err
		}
	}

	return nil
}
