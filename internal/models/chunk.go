package models

import (
	"fmt"
	"strings"
	"time"
)

// LocationType discriminates how a chunk is located within its source.
type LocationType string

const (
	// LocationPages locates a chunk by a 1-based inclusive page range.
	LocationPages LocationType = "pages"
	// LocationHeading locates a chunk by the heading path in effect where it begins.
	LocationHeading LocationType = "heading"
	// LocationNone is used for formats with no page or heading structure.
	LocationNone LocationType = "none"
)

// HeadingPathSeparator joins heading segments into the stored heading path.
// Spaces around the angle bracket keep segments containing ">" unambiguous.
const HeadingPathSeparator = " > "

// Location describes where a chunk sits within its source document.
type Location struct {
	Type        LocationType `json:"type"`
	PageStart   int          `json:"page_start,omitempty"`
	PageEnd     int          `json:"page_end,omitempty"`
	HeadingPath []string     `json:"heading_path,omitempty"`
}

// Display renders the location for end users. An empty heading path and the
// none type both render as "document".
func (l Location) Display() string {
	switch l.Type {
	case LocationPages:
		if l.PageStart == l.PageEnd {
			return fmt.Sprintf("page %d", l.PageStart)
		}
		return fmt.Sprintf("pages %d-%d", l.PageStart, l.PageEnd)
	case LocationHeading:
		if len(l.HeadingPath) == 0 {
			return "document"
		}
		return strings.Join(l.HeadingPath, HeadingPathSeparator)
	default:
		return "document"
	}
}

// Chunk is a contiguous piece of extracted source text, the unit of
// vectorization and retrieval.
type Chunk struct {
	ID          string    `json:"id" db:"id"`
	SourceID    string    `json:"source_id" db:"source_id"`
	ChunkIndex  int       `json:"chunk_index" db:"chunk_index"`
	Text        string    `json:"text" db:"text"`
	ContentHash string    `json:"content_hash" db:"content_hash"`
	PageStart   int       `json:"page_start" db:"page_start"`
	PageEnd     int       `json:"page_end" db:"page_end"`
	HeadingPath string    `json:"heading_path" db:"heading_path"`
	Vectorized  bool      `json:"vectorized" db:"vectorized"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Location derives the chunk's Location from its stored fields. Page fields
// win when set; a non-empty heading path comes second.
func (c *Chunk) Location() Location {
	if c.PageStart > 0 {
		return Location{Type: LocationPages, PageStart: c.PageStart, PageEnd: c.PageEnd}
	}
	if c.HeadingPath != "" {
		return Location{Type: LocationHeading, HeadingPath: strings.Split(c.HeadingPath, HeadingPathSeparator)}
	}
	return Location{Type: LocationNone}
}
