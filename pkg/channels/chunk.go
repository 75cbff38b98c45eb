package channels

import "strings"

// chunkText splits text into pieces of at most limit runes, preferring line
// boundaries. A single line longer than the limit is split mid-line.
func chunkText(text string, limit int) []string {
	if text == "" {
		return []string{""}
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	var current []rune
	for _, line := range strings.Split(text, "\n") {
		lineRunes := []rune(line)

		// Flush when the next line would overflow.
		if len(current) > 0 && len(current)+1+len(lineRunes) > limit {
			chunks = append(chunks, string(current))
			current = nil
		}

		// Hard-split lines that exceed the limit on their own.
		for len(lineRunes) > limit {
			if len(current) > 0 {
				chunks = append(chunks, string(current))
				current = nil
			}
			chunks = append(chunks, string(lineRunes[:limit]))
			lineRunes = lineRunes[limit:]
		}

		if len(current) > 0 {
			current = append(current, '\n')
		}
		current = append(current, lineRunes...)
	}
	if len(current) > 0 {
		chunks = append(chunks, string(current))
	}
	return chunks
}
