// Package naming derives stable qualified names for Go callables and types.
//
// Names take the form "import/path:Symbol", for example
// "net/http:(*Client).Do" is reported as "net/http:Client.Do".
// Resolution walks an ordered chain of strategies; the first strategy that
// recognises the value wins.
package naming

import (
	"fmt"
	"reflect"
	"regexp"
	"runtime"
	"strings"
)

// Nameable is implemented by values that supply their own trace name
type Nameable interface {
	TraceName() string
}

// Unwrapper is implemented by decorated callables that expose the value they wrap
type Unwrapper interface {
	Unwrap() any
}

// Strategy resolves the name of one kind of value
type Strategy interface {
	Resolve(r *Resolver, v any) (string, bool)
}

// StrategyFunc adapts a function to the Strategy interface
type StrategyFunc func(r *Resolver, v any) (string, bool)

// Resolve calls f(r, v)
func (f StrategyFunc) Resolve(r *Resolver, v any) (string, bool) {
	return f(r, v)
}

// Resolver applies strategies in order
type Resolver struct {
	strategies []Strategy
}

// NewResolver creates a resolver. Extra strategies run before the built-in chain.
func NewResolver(extra ...Strategy) *Resolver {
	chain := make([]Strategy, 0, len(extra)+8)
	chain = append(chain, extra...)
	chain = append(chain,
		StrategyFunc(resolveNameable),
		StrategyFunc(resolveWrapped),
		StrategyFunc(resolveType),
		StrategyFunc(resolveBoundMethod),
		StrategyFunc(resolveClosure),
		StrategyFunc(resolveMethodExpression),
		StrategyFunc(resolveFunction),
		StrategyFunc(resolveValue),
	)
	return &Resolver{strategies: chain}
}

// Default is the resolver used by Resolve
var Default = NewResolver()

// Resolve returns the qualified name of v using the default resolver
func Resolve(v any) string {
	return Default.Resolve(v)
}

// Resolve returns the qualified name of v
func (r *Resolver) Resolve(v any) string {
	if v == nil {
		return "<nil>"
	}
	for _, s := range r.strategies {
		if name, ok := s.Resolve(r, v); ok {
			return name
		}
	}
	return fmt.Sprintf("%T", v)
}

func resolveNameable(_ *Resolver, v any) (string, bool) {
	n, ok := v.(Nameable)
	if !ok {
		return "", false
	}
	return n.TraceName(), true
}

func resolveWrapped(r *Resolver, v any) (string, bool) {
	w, ok := v.(Unwrapper)
	if !ok {
		return "", false
	}
	inner := w.Unwrap()
	if inner == nil {
		return "", false
	}
	return r.Resolve(inner), true
}

func resolveType(_ *Resolver, v any) (string, bool) {
	t, ok := v.(reflect.Type)
	if !ok {
		return "", false
	}
	return qualifyType(t), true
}

func resolveBoundMethod(_ *Resolver, v any) (string, bool) {
	pkg, sym, ok := funcSymbol(v)
	if !ok || !strings.HasSuffix(sym, "-fm") {
		return "", false
	}
	return pkg + ":" + cleanSymbol(strings.TrimSuffix(sym, "-fm")), true
}

var closurePattern = regexp.MustCompile(`\.(func|gowrap)\d+(\.\d+)*$`)

func resolveClosure(_ *Resolver, v any) (string, bool) {
	pkg, sym, ok := funcSymbol(v)
	if !ok || !closurePattern.MatchString(sym) {
		return "", false
	}
	return pkg + ":" + cleanSymbol(sym), true
}

func resolveMethodExpression(_ *Resolver, v any) (string, bool) {
	pkg, sym, ok := funcSymbol(v)
	if !ok || !strings.Contains(sym, ".") {
		return "", false
	}
	return pkg + ":" + cleanSymbol(sym), true
}

func resolveFunction(_ *Resolver, v any) (string, bool) {
	pkg, sym, ok := funcSymbol(v)
	if !ok {
		return "", false
	}
	return pkg + ":" + cleanSymbol(sym), true
}

// resolveValue names handler-style values (structs with methods) by their type
func resolveValue(_ *Resolver, v any) (string, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Func {
		// nil func or no runtime symbol (assembly/cgo entry points)
		return "<builtin>:" + rv.Type().String(), true
	}
	return qualifyType(rv.Type()), true
}

// funcSymbol splits the runtime name of a func value into package path and symbol
func funcSymbol(v any) (string, string, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return "", "", false
	}
	fn := runtime.FuncForPC(rv.Pointer())
	if fn == nil {
		return "", "", false
	}
	full := fn.Name()
	slash := strings.LastIndex(full, "/")
	dot := strings.Index(full[slash+1:], ".")
	if dot < 0 {
		return "", "", false
	}
	dot += slash + 1
	return full[:dot], full[dot+1:], true
}

var genericArgs = regexp.MustCompile(`\[[^\]]*\]`)

// cleanSymbol turns "(*T).Method" into "T.Method" and drops instantiation markers
func cleanSymbol(sym string) string {
	sym = genericArgs.ReplaceAllString(sym, "")
	sym = strings.ReplaceAll(sym, "(*", "")
	sym = strings.ReplaceAll(sym, ")", "")
	return sym
}

func qualifyType(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + ":" + genericArgs.ReplaceAllString(t.Name(), "")
}
