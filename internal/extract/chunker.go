package extract

import (
	"strings"

	"github.com/google/uuid"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// Chunker accumulates text units into overlapping chunks. Sizes are in runes.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker. Overlap is clamped to be non-negative and
// strictly smaller than chunkSize so accumulation always makes progress.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize < 1 {
		chunkSize = 1
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize - 1
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Chunk walks units in order, flushing the accumulator whenever appending the
// next unit would exceed chunkSize. Each flushed chunk seeds its successor
// with the trailing chunkOverlap runes. A unit stream that itself overflows
// the budget is split at exactly chunkSize runes. The heading path and first
// page of a chunk are the ones in effect when text first entered the empty
// accumulator.
func (c *Chunker) Chunk(sourceID string, units []unit) []*models.Chunk {
	var chunks []*models.Chunk

	var acc []rune
	var accHeading []string
	accPageStart, accPageEnd := 0, 0
	var lastHeading []string

	emit := func() {
		text := strings.TrimSpace(string(acc))
		if text == "" {
			return
		}
		chunks = append(chunks, &models.Chunk{
			ID:          uuid.New().String(),
			SourceID:    sourceID,
			ChunkIndex:  len(chunks),
			Text:        text,
			ContentHash: utils.HashText(text),
			PageStart:   accPageStart,
			PageEnd:     accPageEnd,
			HeadingPath: strings.Join(accHeading, models.HeadingPathSeparator),
		})
	}

	tail := func(r []rune) []rune {
		if c.chunkOverlap <= 0 || len(r) <= c.chunkOverlap {
			if c.chunkOverlap <= 0 {
				return nil
			}
			return append([]rune(nil), r...)
		}
		return append([]rune(nil), r[len(r)-c.chunkOverlap:]...)
	}

	for _, u := range units {
		text := strings.TrimSpace(u.text)
		if text == "" {
			continue
		}
		runes := []rune(text)

		if len(acc) > 0 && len(acc)+1+len(runes) > c.chunkSize {
			emit()
			acc = tail(acc)
			// The seed inherits the heading in effect, but page tracking
			// restarts at the incoming unit so that consecutive chunks
			// report non-overlapping page ranges.
			accHeading = lastHeading
			accPageStart = u.page
			accPageEnd = u.page
		}

		if len(acc) == 0 {
			accHeading = u.headingPath
			accPageStart = u.page
			accPageEnd = u.page
		} else {
			acc = append(acc, '\n')
			if u.page > 0 {
				accPageEnd = u.page
				if accPageStart == 0 {
					accPageStart = u.page
				}
			}
		}
		acc = append(acc, runes...)
		lastHeading = u.headingPath

		for len(acc) > c.chunkSize {
			rest := append([]rune(nil), acc[c.chunkSize:]...)
			acc = acc[:c.chunkSize]
			emit()
			acc = append(tail(acc), rest...)
		}
	}

	emit()
	return chunks
}
