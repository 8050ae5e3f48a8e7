package text

// Chunker splits normalized text into consecutive fixed-size segments.
// Size is in runes. A trailing segment shorter than the minimum (MinSize
// when > 0, otherwise Size*MinRatio, floor 1) is merged into the previous
// segment so results never end with an undersized fragment unless it is
// the only one.
type Chunker struct {
	Size     int
	MinSize  int
	MinRatio float64
}

// Split is pure and total: it never fails, and returns nil for empty input.
func (c Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}
	if c.Size <= 0 {
		return []string{text}
	}

	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+c.Size-1)/c.Size)
	for i := 0; i < len(runes); i += c.Size {
		end := i + c.Size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}

	if len(chunks) >= 2 {
		min := c.MinSize
		if min <= 0 {
			min = int(float64(c.Size) * c.MinRatio)
		}
		if min < 1 {
			min = 1
		}
		last := len(chunks) - 1
		if len([]rune(chunks[last])) < min {
			chunks[last-1] += chunks[last]
			chunks = chunks[:last]
		}
	}

	return chunks
}
