package channel

import (
	"fmt"
	"reflect"
)

// transformFunc is the canonical internal shape every constructor
// argument is normalized to: apply the transform to v, calling push
// zero or more times, and resolve the returned future with the error
// (nil on success) once emission is complete.
type transformFunc func(v any, push func(any)) *Future[error]

func identityTransform() transformFunc {
	return func(v any, push func(any)) *Future[error] {
		f := NewFuture[error]()
		push(v)
		f.Resolve(nil)
		return f
	}
}

// waitableFuture is satisfied by every *Future[T] regardless of T,
// letting mapTransform await an arity-1 return value without knowing
// its concrete type parameter.
type waitableFuture interface {
	waitAny() any
}

func (f *Future[T]) waitAny() any {
	return f.Wait()
}

// mapTransform wraps an arity-1 pure mapping function. If fn returns a
// future, it is awaited and the resolved value becomes the candidate
// output; returning Skip (directly, or as the future's resolved value)
// produces zero outputs, any other value produces exactly one.
func mapTransform(fn func(any) any) transformFunc {
	return func(v any, push func(any)) *Future[error] {
		f := NewFuture[error]()
		func() {
			defer func() {
				if r := recover(); r != nil {
					f.Resolve(fmt.Errorf("channel: transform panic: %v", r))
				}
			}()
			out := fn(v)
			if wf, ok := out.(waitableFuture); ok {
				out = wf.waitAny()
			}
			if out != Skip {
				push(out)
			}
		}()
		if !f.IsResolved() {
			f.Resolve(nil)
		}
		return f
	}
}

// pushTransform wraps an arity-2 (value, push) function. It always
// runs on its own goroutine so that outputs from one invocation may
// legitimately interleave with outputs from another still in flight —
// the observable asynchronous behavior spec'd for multi-emit
// transforms. Completion is the function returning.
func pushTransform(fn func(any, func(any))) transformFunc {
	return func(v any, push func(any)) *Future[error] {
		f := NewFuture[error]()
		go func() {
			defer func() {
				if r := recover(); r != nil {
					f.Resolve(fmt.Errorf("channel: transform panic: %v", r))
					return
				}
			}()
			fn(v, push)
			f.Resolve(nil)
		}()
		return f
	}
}

// pushDoneTransform wraps an arity-3 (value, push, done) function.
// Completion is the explicit done() call rather than the function
// returning, supporting emission driven by external timers/callbacks.
func pushDoneTransform(fn func(any, func(any), func())) transformFunc {
	return func(v any, push func(any)) *Future[error] {
		f := NewFuture[error]()
		done := func() { f.Resolve(nil) }
		go func() {
			defer func() {
				if r := recover(); r != nil {
					f.Resolve(fmt.Errorf("channel: transform panic: %v", r))
				}
			}()
			fn(v, push, done)
		}()
		return f
	}
}

// resolveTransform normalizes a constructor argument into a
// transformFunc, autodetecting its calling convention.
//
// The three `any`-typed shapes are matched directly; any other
// callable is inspected with reflect.Type.NumIn(), the same
// reflection-driven approach the config package uses to walk struct
// fields, so that a static Pipeline built from concretely-typed
// functions (func(int) int, func(float64) float64, ...) still
// autodetects its arity exactly as spec'd. Inputs and push/done
// arguments are converted through reflect at call time.
func resolveTransform(fn any) (transformFunc, error) {
	switch t := fn.(type) {
	case func(any) any:
		return mapTransform(t), nil
	case func(any, func(any)):
		return pushTransform(t), nil
	case func(any, func(any), func()):
		return pushDoneTransform(t), nil
	}

	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.Type().IsVariadic() {
		return nil, &InvalidArgumentError{Arg: fn, Reason: "not a transform function"}
	}

	switch rv.Type().NumIn() {
	case 1:
		return mapTransform(reflectMapFunc(rv)), nil
	case 2:
		return pushTransform(reflectPushFunc(rv)), nil
	case 3:
		return pushDoneTransform(reflectPushDoneFunc(rv)), nil
	default:
		return nil, &InvalidArgumentError{Arg: fn, Reason: "transform must take 1, 2, or 3 parameters"}
	}
}

func coerce(v any, t reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv
	}
	if rv.Type().ConvertibleTo(t) {
		return rv.Convert(t)
	}
	panic(fmt.Sprintf("channel: cannot use %T as %s in transform", v, t))
}

func reflectMapFunc(rv reflect.Value) func(any) any {
	inType := rv.Type().In(0)
	return func(v any) any {
		out := rv.Call([]reflect.Value{coerce(v, inType)})
		if len(out) == 0 {
			return Skip
		}
		return out[0].Interface()
	}
}

func reflectPushFunc(rv reflect.Value) func(any, func(any)) {
	inType := rv.Type().In(0)
	pushType := rv.Type().In(1)
	return func(v any, push func(any)) {
		pushFn := reflect.MakeFunc(pushType, func(args []reflect.Value) []reflect.Value {
			push(args[0].Interface())
			return nil
		})
		rv.Call([]reflect.Value{coerce(v, inType), pushFn})
	}
}

func reflectPushDoneFunc(rv reflect.Value) func(any, func(any), func()) {
	inType := rv.Type().In(0)
	pushType := rv.Type().In(1)
	doneType := rv.Type().In(2)
	return func(v any, push func(any), done func()) {
		pushFn := reflect.MakeFunc(pushType, func(args []reflect.Value) []reflect.Value {
			push(args[0].Interface())
			return nil
		})
		doneFn := reflect.MakeFunc(doneType, func(args []reflect.Value) []reflect.Value {
			done()
			return nil
		})
		rv.Call([]reflect.Value{coerce(v, inType), pushFn, doneFn})
	}
}
