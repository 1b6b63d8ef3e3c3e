package radio

import (
	"regexp"
	"strconv"
	"strings"
)

// Line-format patterns for m3u8 documents. A tag line is followed by a
// filename line, which never starts with "#".
var (
	versionRe   = regexp.MustCompile(`(?i)#EXT-X-VERSION:([0-9]+)`)
	streamInfRe = regexp.MustCompile(`(?i)#EXT-X-STREAM-INF:(.*)\r?\n([^#\r\n]+)`)
	extInfRe    = regexp.MustCompile(`(?i)#EXTINF:([0-9]+(?:\.[0-9]+)?),.*\r?\n([^#\r\n]+)`)
	bandwidthRe = regexp.MustCompile(`(?i)BANDWIDTH=([0-9]+)`)
	codecsRe    = regexp.MustCompile(`(?i)CODECS="([^"]*)"`)
	urlDirRe    = regexp.MustCompile(`(?i)(https?://.+/)`)
)

// isPlaylist reports whether raw carries the m3u8 marker.
func isPlaylist(raw string) bool {
	return strings.Contains(raw, "#EXTM3U")
}

// parseVersion returns the #EXT-X-VERSION value, or 0 when absent.
func parseVersion(raw string) int {
	m := versionRe.FindStringSubmatch(raw)
	if m == nil {
		return 0
	}
	v, _ := strconv.Atoi(m[1])
	return v
}

// parseStreams extracts the bitrate variants of a master playlist.
// Absent BANDWIDTH defaults to 0, absent CODECS to the empty string.
func parseStreams(raw string) []Stream {
	matches := streamInfRe.FindAllStringSubmatch(raw, -1)
	streams := make([]Stream, 0, len(matches))
	for _, m := range matches {
		st := Stream{Filename: strings.TrimSpace(m[2])}
		if bm := bandwidthRe.FindStringSubmatch(m[1]); bm != nil {
			st.Bandwidth, _ = strconv.Atoi(bm[1])
		}
		if cm := codecsRe.FindStringSubmatch(m[1]); cm != nil {
			st.Codecs = cm[1]
		}
		streams = append(streams, st)
	}
	return streams
}

// parseSegments extracts the media segments of a media playlist in document
// order. The #EXTINF duration uses a locale-invariant decimal format.
func parseSegments(raw string) []Segment {
	matches := extInfRe.FindAllStringSubmatch(raw, -1)
	segments := make([]Segment, 0, len(matches))
	for _, m := range matches {
		d, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		segments = append(segments, Segment{Duration: d, Filename: strings.TrimSpace(m[2])})
	}
	return segments
}

// capSegments keeps at most max of the newest segments, truncating from the
// front so order is preserved. Long-lived stations keep appending; the relay
// only ever needs a trailing window.
func capSegments(segments []Segment, max int) []Segment {
	if max <= 0 || len(segments) <= max {
		return segments
	}
	return segments[len(segments)-max:]
}

// urlDirectory returns the directory part of an absolute playlist URL,
// including the trailing slash. Segment and variant filenames are resolved
// against it.
func urlDirectory(url string) string {
	m := urlDirRe.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[1]
}

// highestBandwidthStream picks the best variant; ties go to the first
// maximum in encounter order.
func highestBandwidthStream(streams []Stream) (Stream, bool) {
	if len(streams) == 0 {
		return Stream{}, false
	}
	best := streams[0]
	for _, s := range streams[1:] {
		if s.Bandwidth > best.Bandwidth {
			best = s
		}
	}
	return best, true
}
