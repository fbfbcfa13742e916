package lifecycle

import (
	"bytes"
	"strings"
)

// LocalCustomizationsHeading introduces carried-over lines in a merged document.
const LocalCustomizationsHeading = "## Local Customizations"

// mergeContent keeps canonical content intact and appends, under
// LocalCustomizationsHeading, the lines of existing that canonical does not
// contain, in their original order. Blank lines are not carried over. If
// nothing is left to carry, canonical is returned unchanged.
func mergeContent(canonical, existing []byte) []byte {
	known := make(map[string]struct{})
	for _, line := range splitLines(canonical) {
		known[strings.TrimRight(line, " \t\r")] = struct{}{}
	}

	var carried []string
	for _, line := range splitLines(existing) {
		trimmed := strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(trimmed) == "" || trimmed == LocalCustomizationsHeading {
			continue
		}
		if _, ok := known[trimmed]; ok {
			continue
		}
		carried = append(carried, trimmed)
	}
	if len(carried) == 0 {
		return canonical
	}

	var b bytes.Buffer
	b.Write(bytes.TrimRight(canonical, "\n"))
	b.WriteString("\n\n")
	b.WriteString(LocalCustomizationsHeading)
	b.WriteString("\n\n")
	for _, line := range carried {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.Bytes()
}

func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}
