// config_features.go - Parallelitaet, Kompression und Journal
//
// Dieses Modul enthaelt:
// - Parallelitaets-Einstellungen fuer Submissions
// - Kompression der Ergebnis-Payloads
// - Pfad des Submission-Journals
package envconfig

import (
	"log/slog"
	"strings"
)

// AllowedOrigins gibt die CORS-Origins der Engine zurueck
// Konfigurierbar via SYSDS_ORIGINS (kommagetrennt)
func AllowedOrigins() (origins []string) {
	for _, o := range strings.Split(Var("SYSDS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// =============================================================================
// Parallelitaets-Einstellungen
// =============================================================================

var (
	// NumParallel setzt die Anzahl gleichzeitiger Submissions pro Context
	// Konfigurierbar via SYSDS_NUM_PARALLEL
	NumParallel = Uint("SYSDS_NUM_PARALLEL", 1)
)

// =============================================================================
// Payload-Einstellungen
// =============================================================================

var (
	// ForceDense erzwingt dichte Matrix-Payloads auch bei geringer Belegung
	ForceDense = Bool("SYSDS_FORCE_DENSE")
)

// Compression gibt die Kompression fuer Ergebnis-Payloads zurueck
// Konfigurierbar via SYSDS_COMPRESSION
// Werte: none (Default), zstd
func Compression() string {
	s := strings.ToLower(Var("SYSDS_COMPRESSION"))
	switch s {
	case "", "none":
		return "none"
	case "zstd":
		return s
	default:
		slog.Warn("unknown compression, using none", "value", s)
		return "none"
	}
}

// =============================================================================
// Journal
// =============================================================================

var (
	// History ist der Pfad einer SQLite-Datenbank fuer das Submission-Journal
	// Leer = kein Journal
	History = String("SYSDS_HISTORY")
)
