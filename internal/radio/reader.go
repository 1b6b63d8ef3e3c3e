package radio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultSegmentWindow bounds the retained tail of the segment list.
	DefaultSegmentWindow = 30

	// DefaultPollFactor is the fraction of the current segment's duration
	// slept between playlist re-fetches while waiting for a new segment.
	// Shorter than a full duration so short-segment stations don't lag.
	DefaultPollFactor = 0.5

	minPollInterval = 250 * time.Millisecond
)

// fetchClient is shared by all readers. A station's playlist is re-fetched
// continuously, so pooled connections are kept alive indefinitely and only
// idle ones are dropped.
var fetchClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     5 * time.Minute,
	},
}

// Reader follows one live playlist. It owns the current playlist snapshot;
// the playback cursor is owned by the caller and passed into the next-segment
// operations. One Reader per client connection, not safe for concurrent use.
type Reader struct {
	client *http.Client

	url     string
	urlPath string

	raw             string
	version         int
	streams         []Stream
	segments        []Segment
	followedVariant bool

	window     int
	pollFactor float64
}

// NewReader returns a Reader keeping at most window trailing segments and
// sleeping pollFactor of the current segment's duration between re-fetches.
// Non-positive arguments fall back to the defaults.
func NewReader(window int, pollFactor float64) *Reader {
	if window <= 0 {
		window = DefaultSegmentWindow
	}
	if pollFactor <= 0 {
		pollFactor = DefaultPollFactor
	}
	return &Reader{client: fetchClient, window: window, pollFactor: pollFactor}
}

// URL returns the URL of the most recently loaded playlist.
func (r *Reader) URL() string { return r.url }

// URLPath returns the directory of the current playlist URL.
func (r *Reader) URLPath() string { return r.urlPath }

// Raw returns the most recently fetched playlist text.
func (r *Reader) Raw() string { return r.raw }

// Version returns the #EXT-X-VERSION of the current playlist, 0 if absent.
func (r *Reader) Version() int { return r.version }

// Streams returns the variants found on the first load, if the source was a
// master playlist.
func (r *Reader) Streams() []Stream { return r.streams }

// Segments returns the current trailing window of media segments.
func (r *Reader) Segments() []Segment { return r.segments }

// Load fetches the playlist at url and resolves it to a media playlist,
// recursing into the highest-bandwidth variant when url names a master
// playlist. A playlist that still resolves to zero segments is an error,
// never a valid empty result.
func (r *Reader) Load(ctx context.Context, url string) error {
	r.url = url
	r.urlPath = urlDirectory(url)
	return r.fetch(ctx, true)
}

// refresh re-fetches the current URL and rebuilds the segment window. An
// empty result during polling means the stream is over, so it is not an
// error here the way it is during Load.
func (r *Reader) refresh(ctx context.Context) error {
	return r.fetch(ctx, false)
}

func (r *Reader) fetch(ctx context.Context, initial bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d %s", ErrInvalidSource, resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	return r.process(ctx, string(body), initial)
}

func (r *Reader) process(ctx context.Context, raw string, initial bool) error {
	r.raw = raw
	if !isPlaylist(raw) {
		return ErrInvalidFormat
	}
	r.version = parseVersion(raw)

	// Variant detection happens on the first successful fetch only: on later
	// refreshes either list being non-empty means the media playlist is
	// already resolved.
	if len(r.streams) == 0 && len(r.segments) == 0 {
		r.streams = parseStreams(raw)
	}

	r.segments = capSegments(parseSegments(raw), r.window)

	if !initial {
		return nil
	}
	if len(r.streams) > 0 && len(r.segments) == 0 && !r.followedVariant {
		r.followedVariant = true
		best, _ := highestBandwidthStream(r.streams)
		return r.Load(ctx, r.urlPath+best.Filename)
	}
	if len(r.segments) == 0 {
		return ErrNoStreamFound
	}
	return nil
}

// FirstSegment picks the starting segment so that roughly bufferSeconds of
// audio sits between it and the live edge: it walks backward from the newest
// segment accumulating durations until the target is reached. When the
// playlist holds less than bufferSeconds in total, the oldest segment is
// returned rather than failing.
func (r *Reader) FirstSegment(bufferSeconds float64) (Segment, bool) {
	if len(r.segments) == 0 {
		return Segment{}, false
	}
	total := 0.0
	for i := len(r.segments) - 1; i >= 0; i-- {
		total += r.segments[i].Duration
		if total >= bufferSeconds {
			return r.segments[i], true
		}
	}
	return r.segments[0], true
}

// NextSegment returns the first segment whose derived sequence number is
// strictly greater than current's. The list is ordered ascending, so that is
// the segment published right after current. Pure lookup, no network.
func (r *Reader) NextSegment(current Segment) (Segment, bool) {
	cur := current.SequenceNumber()
	for _, s := range r.segments {
		if n := s.SequenceNumber(); n != NoSequence && n > cur {
			return s, true
		}
	}
	return Segment{}, false
}

// NextSegmentAndRefresh returns the segment after current, re-fetching the
// playlist while none has been published yet. An empty segment list after a
// refresh means the stream is over and ok is false. Both the sleep and the
// fetch observe ctx.
func (r *Reader) NextSegmentAndRefresh(ctx context.Context, current Segment) (next Segment, ok bool, err error) {
	if next, ok := r.NextSegment(current); ok {
		return next, true, nil
	}
	for len(r.segments) > 0 {
		if err := sleepCtx(ctx, r.pollInterval(current)); err != nil {
			return Segment{}, false, err
		}
		if err := r.refresh(ctx); err != nil {
			return Segment{}, false, err
		}
		if next, ok := r.NextSegment(current); ok {
			return next, true, nil
		}
	}
	return Segment{}, false, nil
}

// DownloadSegment fetches the raw bytes of seg relative to the playlist
// directory. Transport failures are not retried at this layer.
func (r *Reader) DownloadSegment(ctx context.Context, seg Segment) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.urlPath+seg.Filename, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d for %s", ErrDownload, resp.StatusCode, seg.Filename)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	return data, nil
}

func (r *Reader) pollInterval(current Segment) time.Duration {
	d := time.Duration(current.Duration * r.pollFactor * float64(time.Second))
	if d < minPollInterval {
		d = minPollInterval
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
