package blog

import (
	"strings"

	"github.com/bryan-buckman/spacetraveling/internal/model"
	"github.com/bryan-buckman/spacetraveling/internal/richtext"
)

// WordsPerMinute is the reading rate used for estimates.
const WordsPerMinute = 200

// WordCount counts the whitespace-separated words of every heading and body.
func WordCount(post *model.PostDetail) int {
	if post == nil {
		return 0
	}
	words := 0
	for _, block := range post.Content {
		words += len(strings.Fields(block.Heading))
		words += len(strings.Fields(richtext.AsText(block.Body)))
	}
	return words
}

// ReadingTime estimates the minutes needed to read post, rounded up.
func ReadingTime(post *model.PostDetail) int {
	words := WordCount(post)
	return (words + WordsPerMinute - 1) / WordsPerMinute
}
