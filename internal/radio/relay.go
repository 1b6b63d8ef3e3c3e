package radio

import (
	"context"
	"errors"
	"log/slog"

	"radio-hls-relay/internal/platform/logger"
	"radio-hls-relay/internal/platform/metrics"
)

// DefaultBufferSeconds is how much audio sits between the starting segment
// and the live edge when nothing else is configured.
const DefaultBufferSeconds = 30.0

// Sink receives converted audio bytes, one transcoder read per call.
type Sink interface {
	Write(ctx context.Context, p []byte) error
	Flush(ctx context.Context) error
}

// Relay drives one end-to-end conversion: playlist in, converted bytes out.
// One Relay per client connection; nothing here is shared across
// connections.
type Relay struct {
	reader        *Reader
	transcoder    *Transcoder
	log           *slog.Logger
	bufferSeconds float64
	metrics       *metrics.Metrics
}

// NewRelay wires a relay from its collaborators. Metrics may be nil to
// disable recording (e.g. in tests). Non-positive bufferSeconds falls back
// to DefaultBufferSeconds.
func NewRelay(reader *Reader, transcoder *Transcoder, log *slog.Logger, bufferSeconds float64, m *metrics.Metrics) *Relay {
	if bufferSeconds <= 0 {
		bufferSeconds = DefaultBufferSeconds
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Relay{
		reader:        reader,
		transcoder:    transcoder,
		log:           log,
		bufferSeconds: bufferSeconds,
		metrics:       m,
	}
}

// Run relays the station's live feed into sink until the stream ends or ctx
// is cancelled. Cancellation is the normal client-disconnect path and
// returns nil; only the typed relay errors surface.
func (rl *Relay) Run(ctx context.Context, station Station, sink Sink) error {
	defer rl.transcoder.Close()

	onOutput := func(ctx context.Context, chunk []byte) error {
		if err := sink.Write(ctx, chunk); err != nil {
			return err
		}
		if err := sink.Flush(ctx); err != nil {
			return err
		}
		if rl.metrics != nil {
			rl.metrics.AddOutputBytes(len(chunk))
		}
		return nil
	}

	if err := rl.transcoder.Init(ctx, station.Spec(), onOutput); err != nil {
		return rl.finish(err)
	}
	if err := rl.reader.Load(ctx, station.SourceURL); err != nil {
		return rl.finish(err)
	}

	segment, ok := rl.reader.FirstSegment(rl.bufferSeconds)
	if !ok {
		// Load guarantees a non-empty segment list.
		return ErrNoFirstSegment
	}

	for {
		data, err := rl.reader.DownloadSegment(ctx, segment)
		if err != nil {
			return rl.finish(err)
		}
		if err := rl.transcoder.Feed(ctx, data); err != nil {
			return rl.finish(err)
		}
		if rl.metrics != nil {
			rl.metrics.IncSegmentsFed()
		}

		next, ok, err := rl.reader.NextSegmentAndRefresh(ctx, segment)
		if err != nil {
			return rl.finish(err)
		}
		if !ok {
			rl.log.Info("playlist exhausted, ending relay", "station", station.Name)
			rl.transcoder.Drain(ctx)
			return nil
		}
		segment = next
	}
}

// finish converts cancellation into the normal return path; everything else
// passes through.
func (rl *Relay) finish(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
