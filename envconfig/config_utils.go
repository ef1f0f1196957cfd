// config_utils.go - Utility-Funktionen und Export fuer Konfiguration
//
// Dieses Modul enthaelt:
// - BoolWithDefault/Bool: Boolean-Getter mit Default-Wert
// - String: String-Getter
// - Uint: Integer-Getter mit Default-Wert
// - EnvVar: Struktur fuer Environment-Variablen-Info
// - AsMap: Gibt alle Konfigurationen als Map zurueck
// - Values: Gibt alle Konfigurationswerte als String-Map zurueck
package envconfig

import (
	"fmt"
	"log/slog"
	"strconv"
)

// =============================================================================
// Boolean-Getter
// =============================================================================

// BoolWithDefault gibt eine Funktion zurueck, die einen Bool mit Default-Wert liest
func BoolWithDefault(k string) func(defaultValue bool) bool {
	return func(defaultValue bool) bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return defaultValue
	}
}

// Bool gibt eine Funktion zurueck, die einen Bool liest (Default: false)
func Bool(k string) func() bool {
	withDefault := BoolWithDefault(k)
	return func() bool {
		return withDefault(false)
	}
}

// =============================================================================
// String-Getter
// =============================================================================

// String gibt eine Funktion zurueck, die einen String liest
func String(s string) func() string {
	return func() string {
		return Var(s)
	}
}

// =============================================================================
// Integer-Getter
// =============================================================================

// Uint gibt eine Funktion zurueck, die einen uint mit Default-Wert liest
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

// =============================================================================
// Export-Strukturen und -Funktionen
// =============================================================================

// EnvVar repraesentiert eine Environment-Variable mit Metadaten
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap gibt alle Konfigurationen als Map zurueck
// Enthaelt Namen, aktuelle Werte und Beschreibungen
func AsMap() map[string]EnvVar {
	host := ""
	if u := Host(); u != nil {
		host = u.String()
	}

	return map[string]EnvVar{
		"SYSDS_DEBUG":           {"SYSDS_DEBUG", LogLevel(), "Show additional debug information (e.g. SYSDS_DEBUG=1)"},
		"SYSDS_HOST":            {"SYSDS_HOST", host, "Address of a running engine; empty spawns a runner subprocess"},
		"SYSDS_RUNNER":          {"SYSDS_RUNNER", Runner(), "Path of the engine executable (default: this binary)"},
		"SYSDS_WORKDIR":         {"SYSDS_WORKDIR", WorkDir(), "Working directory of the engine"},
		"SYSDS_MEMORY":          {"SYSDS_MEMORY", Memory(), "Memory budget of the engine (e.g. 4GiB)"},
		"SYSDS_STARTUP_TIMEOUT": {"SYSDS_STARTUP_TIMEOUT", StartupTimeout(), "How long to wait for the engine to become ready (default \"60s\")"},
		"SYSDS_NUM_PARALLEL":    {"SYSDS_NUM_PARALLEL", NumParallel(), "Maximum number of concurrent submissions per context"},
		"SYSDS_COMPRESSION":     {"SYSDS_COMPRESSION", Compression(), "Compression of result payloads (none, zstd)"},
		"SYSDS_HISTORY":         {"SYSDS_HISTORY", History(), "Path of a SQLite journal of submitted programs"},
		"SYSDS_FORCE_DENSE":     {"SYSDS_FORCE_DENSE", ForceDense(), "Always transfer matrices in dense layout"},
		"SYSDS_ORIGINS":         {"SYSDS_ORIGINS", AllowedOrigins(), "Comma separated CORS origins the engine accepts"},
	}
}

// Values gibt alle Konfigurationswerte als String-Map zurueck
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
