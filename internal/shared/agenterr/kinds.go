package agenterr

import "strings"

const (
	builtinNamespace = "exceptions."
	agentNamespace   = "NewRelic::Agent::"
)

// builtinKinds are the short, builtin-like error types the collector may report
var builtinKinds = map[string]struct{}{
	"Exception":           {},
	"RuntimeError":        {},
	"KeyError":            {},
	"ValueError":          {},
	"TypeError":           {},
	"IndexError":          {},
	"AttributeError":      {},
	"NotImplementedError": {},
	"IOError":             {},
}

// agentKinds are collector control exceptions reported without their namespace
var agentKinds = map[string]struct{}{
	"ForceRestartException":     {},
	"ForceDisconnectException":  {},
	"LicenseException":          {},
	"PostTooBigException":       {},
	"ServiceUnavailable":        {},
	"InvalidDataTokenException": {},
}

// ExpandKind maps a short error type reported by the collector to its fully
// qualified form. Names that are already qualified or unknown pass through.
func ExpandKind(errorType string) string {
	name := strings.TrimSpace(errorType)
	if strings.Contains(name, ".") || strings.Contains(name, "::") {
		return name
	}
	if _, ok := builtinKinds[name]; ok {
		return builtinNamespace + name
	}
	if _, ok := agentKinds[name]; ok {
		return agentNamespace + name
	}
	return name
}
