package metrics

import (
	"strings"

	"github.com/imyousuf/codecaliper/internal/store"
)

// CountLines counts total, blank, comment and code lines of C-family source
// (C#, Java). A line is a comment line when it holds nothing but comment text.
func CountLines(content []byte) store.LineCounts {
	lines := strings.Split(string(content), "\n")
	// Trim trailing empty line from final newline.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	counts := store.LineCounts{Total: len(lines)}
	inBlock := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			counts.Blank++
			continue
		}

		if inBlock {
			counts.Comment++
			if end := strings.Index(trimmed, "*/"); end >= 0 {
				inBlock = false
				// code after the close makes this a code line
				if rest := strings.TrimSpace(trimmed[end+2:]); rest != "" && !strings.HasPrefix(rest, "//") {
					counts.Comment--
				}
			}
			continue
		}

		if strings.HasPrefix(trimmed, "//") {
			counts.Comment++
			continue
		}

		if strings.HasPrefix(trimmed, "/*") {
			end := strings.Index(trimmed[2:], "*/")
			if end < 0 {
				inBlock = true
				counts.Comment++
				continue
			}
			if rest := strings.TrimSpace(trimmed[end+4:]); rest == "" || strings.HasPrefix(rest, "//") {
				counts.Comment++
				continue
			}
		}
	}

	counts.Code = counts.Total - counts.Blank - counts.Comment
	if counts.Code < 0 {
		counts.Code = 0
	}
	return counts
}
