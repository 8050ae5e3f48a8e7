package text

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunker_Split(t *testing.T) {
	c := Chunker{Size: 500, MinRatio: 0.6}

	t.Run("Empty input", func(t *testing.T) {
		assert.Empty(t, c.Split(""))
	})

	t.Run("Single short chunk", func(t *testing.T) {
		chunks := c.Split("hello world")
		assert.Len(t, chunks, 1)
		assert.Equal(t, "hello world", chunks[0])
	})

	t.Run("Short tail merges into previous chunk", func(t *testing.T) {
		// 520 runes: tail of 20 < 500*0.6=300, so it merges
		input := strings.Repeat("a", 520)
		chunks := c.Split(input)
		assert.Len(t, chunks, 1)
		assert.Len(t, chunks[0], 520)
	})

	t.Run("Long tail stays separate", func(t *testing.T) {
		// 1200 runes: tail would be 200 < 300, merged into a 700-rune chunk
		input := strings.Repeat("b", 1200)
		chunks := c.Split(input)
		assert.Len(t, chunks, 2)
		assert.Len(t, chunks[0], 500)
		assert.Len(t, chunks[1], 700)
	})

	t.Run("Tail at minimum is kept", func(t *testing.T) {
		// tail of exactly 300 is not below the minimum
		input := strings.Repeat("c", 800)
		chunks := c.Split(input)
		assert.Len(t, chunks, 2)
		assert.Len(t, chunks[1], 300)
	})

	t.Run("MinSize overrides ratio", func(t *testing.T) {
		cc := Chunker{Size: 500, MinRatio: 0.6, MinSize: 10}
		// tail of 20 >= 10, so no merge
		input := strings.Repeat("d", 520)
		chunks := cc.Split(input)
		assert.Len(t, chunks, 2)
		assert.Len(t, chunks[1], 20)
	})

	t.Run("Concatenation preserves input", func(t *testing.T) {
		input := strings.Repeat("xyz", 700)
		assert.Equal(t, input, strings.Join(c.Split(input), ""))
	})

	t.Run("Multi-byte runes are not split", func(t *testing.T) {
		cc := Chunker{Size: 3, MinSize: 1}
		chunks := cc.Split("日本語のテキスト")
		for _, ch := range chunks {
			assert.True(t, len([]rune(ch)) <= 4)
		}
		assert.Equal(t, "日本語のテキスト", strings.Join(chunks, ""))
	})

	t.Run("Zero size returns whole text", func(t *testing.T) {
		cc := Chunker{}
		assert.Equal(t, []string{"abc"}, cc.Split("abc"))
	})
}
