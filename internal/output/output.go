// Package output provides the dual JSON/plain rendering used by cmd/dhara,
// ported from dh-cli's internal/output package.
package output

import (
	"encoding/json"
	"fmt"
	"io"
)

const (
	ExitSuccess  = 0
	ExitError    = 1
	ExitNotFound = 4
)

var flagJSON bool

// SetJSON is called by the root command's PersistentPreRunE.
func SetJSON(v bool) { flagJSON = v }

// IsJSON returns true when --json mode is active.
func IsJSON() bool { return flagJSON }

// PrintJSON marshals v as indented JSON and writes it to w.
func PrintJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// PrintError writes a JSON error envelope to w.
func PrintError(w io.Writer, code, message string) error {
	return PrintJSON(w, map[string]string{
		"error":   code,
		"message": message,
	})
}
