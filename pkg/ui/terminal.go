package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// ASCIILogo is printed at the start of an interactive run
const ASCIILogo = `
    ╔════════════════════════════════════════════════════════════════╗
    ║ ████████╗ █████╗  ██████╗ ███████╗██╗███╗   ██╗██████╗ ███████╗ ║
    ║ ╚══██╔══╝██╔══██╗██╔════╝ ██╔════╝██║████╗  ██║██╔══██╗██╔════╝ ║
    ║    ██║   ███████║██║  ███╗█████╗  ██║██╔██╗ ██║██║  ██║█████╗   ║
    ║    ██║   ██╔══██║██║   ██║██╔══╝  ██║██║╚██╗██║██║  ██║██╔══╝   ║
    ║    ██║   ██║  ██║╚██████╔╝██║     ██║██║ ╚████║██████╔╝███████╗ ║
    ║    ╚═╝   ╚═╝  ╚═╝ ╚═════╝ ╚═╝     ╚═╝╚═╝  ╚═══╝╚═════╝ ╚══════╝ ║
    ║            TUMBLR TAG CRAWLER  -  PROFILE FINDER               ║
    ╚════════════════════════════════════════════════════════════════╝
`

// Out is where the Print helpers write
var Out io.Writer = os.Stdout

var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

func colorize(colorString string) func(string) string {
	return func(text string) string {
		return fmt.Sprintf(colorString, text)
	}
}

// DisableColor makes every colour func return its input unchanged
func DisableColor() {
	plain := func(text string) string { return text }
	Cyan, Yellow, Red, Green, Magenta, Dim = plain, plain, plain, plain, plain, plain
}

func PrintLogo() {
	fmt.Fprint(Out, Cyan(ASCIILogo))
}

// PrintError prints msg in red, followed by the first arg if any
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg += ": " + fmt.Sprintf("%v", args[0])
	}
	fmt.Fprintln(Out, Red(msg))
}

func PrintSuccess(msg string) {
	fmt.Fprintln(Out, Green(msg))
}

// PrintInfo prints a label/value pair
func PrintInfo(label string, value string) {
	fmt.Fprintf(Out, "%s: %s\n", Cyan(label), Yellow(value))
}

func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg += ": " + fmt.Sprintf("%v", args[0])
	}
	fmt.Fprintln(Out, Yellow(msg))
}

func PrintHighlight(msg string) {
	fmt.Fprintln(Out, Magenta(msg))
}

// Bar renders used/limit as a fixed-width bar. A non-positive limit renders empty.
func Bar(used, limit, width int) string {
	filled := 0
	if limit > 0 {
		filled = used * width / limit
	}
	filled = max(0, min(filled, width))
	return strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, width-filled)
}
