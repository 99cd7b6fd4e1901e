package trace

import (
	"context"

	"github.com/GriffinCanCode/AgentOS/monitor/internal/shared/naming"
)

// Naming chooses the node name for each call of a wrapped function
type Naming[A any] interface {
	bind(fn any) func(arg A) string
}

type literalNaming[A any] string

func (n literalNaming[A]) bind(any) func(A) string {
	name := string(n)
	return func(A) string { return name }
}

// Named uses the same literal name for every call
func Named[A any](name string) Naming[A] {
	return literalNaming[A](name)
}

type resolvedNaming[A any] struct {
	resolver *naming.Resolver
}

func (n resolvedNaming[A]) bind(fn any) func(A) string {
	resolver := n.resolver
	if resolver == nil {
		resolver = naming.Default
	}
	name := resolver.Resolve(fn)
	return func(A) string { return name }
}

// Resolved names calls after the wrapped function's qualified name.
// A nil resolver uses naming.Default.
func Resolved[A any](resolver *naming.Resolver) Naming[A] {
	return resolvedNaming[A]{resolver: resolver}
}

type argNaming[A any] func(A) string

func (n argNaming[A]) bind(any) func(A) string {
	return n
}

// ByArg derives the name from the call's argument, so it can vary per call
func ByArg[A any](project func(A) string) Naming[A] {
	return argNaming[A](project)
}

// Wrap returns fn instrumented with a trace scope around every call.
// A nil naming resolves the name from fn itself.
func Wrap[A, R any](fn func(context.Context, A) (R, error), n Naming[A]) func(context.Context, A) (R, error) {
	if n == nil {
		n = Resolved[A](nil)
	}
	nameOf := n.bind(fn)

	return func(ctx context.Context, arg A) (R, error) {
		var result R
		err := Do(ctx, nameOf(arg), func(ctx context.Context) error {
			var callErr error
			result, callErr = fn(ctx, arg)
			return callErr
		})
		return result, err
	}
}

// WrapFunc instruments a function that takes no argument besides the context
func WrapFunc(fn func(context.Context) error, n Naming[struct{}]) func(context.Context) error {
	if n == nil {
		n = Resolved[struct{}](nil)
	}
	name := n.bind(fn)(struct{}{})

	return func(ctx context.Context) error {
		return Do(ctx, name, fn)
	}
}
