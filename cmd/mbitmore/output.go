package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var validFormats = []string{"table", "json"}

func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format '%s': must be one of %v", format, validFormats)
}

// colorEnabled reports whether w is a terminal that should receive colours.
func colorEnabled(w io.Writer) bool {
	if color.NoColor {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// heading returns a bold printer for w, plain when w is not a terminal.
func heading(w io.Writer) *color.Color {
	c := color.New(color.Bold, color.FgCyan)
	if colorEnabled(w) {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
