package radio

import (
	"regexp"
	"strconv"
)

// NoSequence is returned by SequenceNumber for filenames without an
// embedded segment number.
const NoSequence int64 = -1

// First run of digits immediately before a "." (segment_3351399.ts -> 3351399).
var segmentNumberRe = regexp.MustCompile(`([0-9]+)\.`)

// Segment is a single media chunk referenced by a media playlist.
// Identity is the filename alone; a playlist refresh that rewrites a
// duration must not make an already-played segment look new.
type Segment struct {
	Duration float64 // seconds, from the #EXTINF tag
	Filename string
}

// Equal reports whether two segments reference the same media chunk.
func (s Segment) Equal(other Segment) bool {
	return s.Filename == other.Filename
}

// SequenceNumber derives the segment's position in the live feed from its
// filename. Returns NoSequence when the filename carries no number; this is
// never an error.
func (s Segment) SequenceNumber() int64 {
	m := segmentNumberRe.FindStringSubmatch(s.Filename)
	if m == nil {
		return NoSequence
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return NoSequence
	}
	return n
}

// Stream is one bitrate/quality variant inside a master playlist.
type Stream struct {
	Bandwidth int
	Codecs    string
	Filename  string
}
