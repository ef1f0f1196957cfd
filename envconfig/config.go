// config.go - Haupt-Konfigurationsfunktionen fuer sysds
//
// Dieses Modul enthaelt:
// - Host: Adresse einer bereits laufenden Engine (SYSDS_HOST)
// - Runner: Pfad zur Engine-Executable (SYSDS_RUNNER)
// - WorkDir: Arbeitsverzeichnis der Engine (SYSDS_WORKDIR)
// - Memory: Speicherbudget der Engine (SYSDS_MEMORY)
// - StartupTimeout: Startup-Timeout (SYSDS_STARTUP_TIMEOUT)
// - LogLevel: Log-Level (SYSDS_DEBUG)
//
// Weitere Konfigurationen sind ausgelagert:
// - config_features.go: Parallelitaet, Kompression, Journal
// - config_utils.go: Utility-Funktionen und AsMap/Values
package envconfig

import (
	"log/slog"
	"math"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Host gibt die Adresse einer laufenden Engine zurueck
// Konfigurierbar via SYSDS_HOST
// Default: nil (Engine wird als Subprozess gestartet)
func Host() *url.URL {
	s := strings.TrimSpace(Var("SYSDS_HOST"))
	if s == "" {
		return nil
	}

	defaultPort := "8765"
	scheme, hostport, ok := strings.Cut(s, "://")
	switch {
	case !ok:
		scheme, hostport = "http", s
	case scheme == "http":
		defaultPort = "80"
	case scheme == "https":
		defaultPort = "443"
	}

	hostport, path, _ := strings.Cut(hostport, "/")
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = "127.0.0.1", defaultPort
		if ip := net.ParseIP(strings.Trim(hostport, "[]")); ip != nil {
			host = ip.String()
		} else if hostport != "" {
			host = hostport
		}
	}

	if n, err := strconv.ParseInt(port, 10, 32); err != nil || n > 65535 || n < 0 {
		slog.Warn("invalid port, using default", "port", port, "default", defaultPort)
		port = defaultPort
	}

	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, port),
		Path:   path,
	}
}

// Runner gibt den Pfad zur Engine-Executable zurueck
// Konfigurierbar via SYSDS_RUNNER
// Default: eigene Executable (Subcommand "runner")
func Runner() string {
	if s := Var("SYSDS_RUNNER"); s != "" {
		return s
	}

	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return exe
}

// WorkDir gibt das Arbeitsverzeichnis der Engine zurueck
// Konfigurierbar via SYSDS_WORKDIR
// Default: leer (aktuelles Verzeichnis)
func WorkDir() string {
	return Var("SYSDS_WORKDIR")
}

// Memory gibt das Speicherbudget der Engine in Bytes zurueck
// Konfigurierbar via SYSDS_MEMORY, z.B. "4GiB" oder "512MB"
// Default: 0 (unbegrenzt)
func Memory() uint64 {
	s := Var("SYSDS_MEMORY")
	if s == "" {
		return 0
	}

	n, err := humanize.ParseBytes(s)
	if err != nil {
		slog.Warn("invalid memory budget, ignoring", "value", s, "error", err)
		return 0
	}
	return n
}

// StartupTimeout gibt das Timeout fuer den Engine-Start zurueck
// Konfigurierbar via SYSDS_STARTUP_TIMEOUT
// 0 oder negative Werte = unendlich
// Default: 60 Sekunden
func StartupTimeout() (timeout time.Duration) {
	timeout = 60 * time.Second
	if s := Var("SYSDS_STARTUP_TIMEOUT"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			timeout = d
		} else if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			timeout = time.Duration(n) * time.Second
		}
	}

	if timeout <= 0 {
		return time.Duration(math.MaxInt64)
	}

	return timeout
}

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via SYSDS_DEBUG
// Werte: 0/false = INFO (Default), 1/true = DEBUG, 2 = TRACE
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("SYSDS_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
