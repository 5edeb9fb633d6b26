package theme

import (
	"fmt"
	"io"
	"os"
)

const (
	green  = "\033[32m"
	yellow = "\033[33m"
	dim    = "\033[2m"
	reset  = "\033[0m"
)

// Banner returns the tool banner. color=false strips ANSI codes for pipes and tests.
func Banner(color bool) string {
	c := func(code, s string) string {
		if !color {
			return s
		}
		return code + s + reset
	}
	return "" +
		c(green, "   ,_,   ") + "  " + c(yellow, "CULTIVATOR") + "\n" +
		c(green, "  (o,o)  ") + "  slow, careful, human-paced\n" +
		c(green, "  {`\"'}  ") + "  comment cultivation for reddit\n" +
		c(dim, "  -\"-\"-  ") + "\n"
}

// PrintBanner writes the banner to w, colored only when w is a terminal.
func PrintBanner(w io.Writer) {
	fmt.Fprint(w, Banner(isTerminal(w)))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	st, err := f.Stat()
	return err == nil && st.Mode()&os.ModeCharDevice != 0
}
