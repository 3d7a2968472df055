// Package ui holds the ANSI styling shared by the server's route log and the
// terminal front-end.
package ui

import "fmt"

const (
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	Gray    = "\033[90m" // Bright black, often appears as gray

	Bold       = "\033[1m"
	ResetColor = "\033[0m"
)

var MethodColors = map[string]string{
	"GET":    Green,
	"POST":   Blue,
	"PUT":    Cyan,
	"DELETE": Yellow,
	"PATCH":  Magenta,
}

// Method pads an HTTP method to a fixed width and colours it.
func Method(method string) string {
	padded := fmt.Sprintf(" %-7s", method)
	color, ok := MethodColors[method]
	if !ok {
		color = Gray
	}
	return color + padded + ResetColor
}

// Colorize wraps s in color when enabled is true.
func Colorize(enabled bool, color, s string) string {
	if !enabled {
		return s
	}
	return color + s + ResetColor
}
