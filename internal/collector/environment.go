package collector

import (
	"os"
	"strings"
)

const (
	// Language identifies this agent implementation to the collector
	Language = "go"
	// AgentVersion is reported in the connect start options
	AgentVersion = "0.9.0"
	// identifierSeparator joins application names into the session identifier
	identifierSeparator = ","
)

// Environment describes the monitored process for the connect handshake
type Environment struct {
	PID          int
	Hostname     string
	Language     string
	AppNames     []string
	AgentVersion string
}

// DetectEnvironment describes the current process
func DetectEnvironment(appNames []string) Environment {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return Environment{
		PID:          os.Getpid(),
		Hostname:     hostname,
		Language:     Language,
		AppNames:     append([]string(nil), appNames...),
		AgentVersion: AgentVersion,
	}
}

// Identifier joins the application names
func (e Environment) Identifier() string {
	return strings.Join(e.AppNames, identifierSeparator)
}

// StartOptions builds the single argument of the connect method
func (e Environment) StartOptions() map[string]any {
	appNames := e.AppNames
	if appNames == nil {
		appNames = []string{}
	}
	return map[string]any{
		"pid":           e.PID,
		"language":      e.Language,
		"host":          e.Hostname,
		"app_name":      appNames,
		"identifier":    e.Identifier(),
		"agent_version": e.AgentVersion,
	}
}
