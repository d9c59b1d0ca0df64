// Package logging configures the process logger on top of log/slog.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Records carry service and version; Component adds a component tag.
// Attributes whose key mentions a password, token or secret are redacted.
//
// These logs are for the host's collector. The operator-facing history the
// query surface serves lives in the journal package.
package logging
