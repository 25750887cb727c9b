package processor

import (
	"fmt"
	"strings"
)

// FormatReport renders paired lines as
//
//	[Box 1]
//	ORIGIN: <recognized>
//	<TARGET>: <translated>
//
// with a blank line after every box.
func FormatReport(lines []Line, targetLabel string) string {
	if targetLabel == "" {
		targetLabel = "TRANSLATION"
	}
	var b strings.Builder
	for _, l := range lines {
		fmt.Fprintf(&b, "[Box %d]\nORIGIN: %s\n%s: %s\n\n", l.Index, l.Original, targetLabel, l.Translated)
	}
	return b.String()
}
