package layer

import (
	"errors"
	"fmt"
)

// ErrHook wraps failures raised inside mod-supplied functions.
var ErrHook = errors.New("hook failed")

// Value is either a literal or a function computed at the point of use.
// The zero Value is unset; Or supplies the default.
type Value[T any] struct {
	lit T
	fn  func(Context) (T, error)
	set bool
}

// Lit wraps a constant.
func Lit[T any](v T) Value[T] { return Value[T]{lit: v, set: true} }

// Fn wraps a function that ignores its context.
func Fn[T any](f func() T) Value[T] {
	return Value[T]{fn: func(Context) (T, error) { return f(), nil }, set: true}
}

// Computed wraps a function of the evaluation context.
func Computed[T any](f func(Context) T) Value[T] {
	return Value[T]{fn: func(c Context) (T, error) { return f(c), nil }, set: true}
}

// Fallible wraps a function that may fail, such as a script call.
func Fallible[T any](f func(Context) (T, error)) Value[T] {
	return Value[T]{fn: f, set: true}
}

// IsSet reports whether the value was given.
func (v Value[T]) IsSet() bool { return v.set }

// Or returns v when set, else the literal def.
func (v Value[T]) Or(def T) Value[T] {
	if v.set {
		return v
	}
	return Lit(def)
}

// Resolve evaluates v. Panics inside computed functions come back as errors
// wrapping ErrHook.
func (v Value[T]) Resolve(c Context) (out T, err error) {
	if v.fn == nil {
		return v.lit, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHook, r)
		}
	}()
	out, err = v.fn(c)
	if err != nil && !errors.Is(err, ErrHook) {
		err = fmt.Errorf("%w: %w", ErrHook, err)
	}
	return out, err
}

// Call runs a hook, converting panics to errors wrapping ErrHook.
func Call(c Context, name string, h func(Context) error) (err error) {
	if h == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrHook, name, r)
		}
	}()
	if err := h(c); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrHook, name, err)
	}
	return nil
}
