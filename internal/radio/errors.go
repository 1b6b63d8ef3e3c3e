package radio

import "errors"

var (
	// ErrInvalidSource means the playlist URL could not be fetched with a
	// success status.
	ErrInvalidSource = errors.New("invalid playlist source")

	// ErrInvalidFormat means the fetched document lacks the #EXTM3U marker.
	ErrInvalidFormat = errors.New("document is not an m3u8 playlist")

	// ErrNoStreamFound means the playlist, after following its best variant,
	// still resolved to zero media segments.
	ErrNoStreamFound = errors.New("playlist resolved to no media segments")

	// ErrNoFirstSegment means the segment list was empty when the relay
	// computed its starting position.
	ErrNoFirstSegment = errors.New("no first segment available")

	// ErrDownload means a segment fetch failed at the transport level.
	ErrDownload = errors.New("segment download failed")

	// ErrPipeNotConnected means a write was attempted before the transcoder
	// process attached to the input pipe, or after the session closed.
	ErrPipeNotConnected = errors.New("transcoder pipe not connected")
)
