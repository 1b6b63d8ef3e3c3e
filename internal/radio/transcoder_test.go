package radio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"testing"
	"time"
)

// newEchoTranscoder swaps the ffmpeg invocation for a shell that copies the
// input pipe to the output pipe unchanged.
func newEchoTranscoder() *Transcoder {
	tr := NewTranscoder("", 0, nil)
	tr.newCommand = func(spec FormatSpec, inPath, outPath string) *exec.Cmd {
		return exec.Command("/bin/sh", "-c", fmt.Sprintf("cat < %s > %s", inPath, outPath))
	}
	return tr
}

type collectSink struct {
	mu  sync.Mutex
	buf []byte
}

func (c *collectSink) output(ctx context.Context, chunk []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf = append(c.buf, chunk...)
	return nil
}

func (c *collectSink) bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, len(c.buf))
	copy(out, c.buf)
	return out
}

func TestTranscoder_echoRoundTrip(t *testing.T) {
	tr := newEchoTranscoder()
	sink := &collectSink{}
	ctx := context.Background()

	if err := tr.Init(ctx, FormatSpec{}, sink.output); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if err := tr.Feed(ctx, []byte("hello ")); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if err := tr.Feed(ctx, []byte("world")); err != nil {
		t.Fatalf("Feed: %v", err)
	}

	tr.Drain(ctx)

	if got := string(sink.bytes()); got != "hello world" {
		t.Errorf("echoed output = %q, want %q", got, "hello world")
	}

	if err := tr.Feed(ctx, []byte("late")); !errors.Is(err, ErrPipeNotConnected) {
		t.Errorf("Feed after drain should report ErrPipeNotConnected, got %v", err)
	}
}

func TestTranscoder_feedBeforeInit(t *testing.T) {
	tr := newEchoTranscoder()
	err := tr.Feed(context.Background(), []byte("too early"))
	if !errors.Is(err, ErrPipeNotConnected) {
		t.Errorf("expected ErrPipeNotConnected, got %v", err)
	}
}

func TestTranscoder_closeIdempotent(t *testing.T) {
	tr := newEchoTranscoder()
	if err := tr.Init(context.Background(), FormatSpec{}, func(ctx context.Context, chunk []byte) error { return nil }); err != nil {
		t.Fatalf("Init: %v", err)
	}

	tr.Close()
	tr.Close()

	if _, err := os.Stat(tr.inPath); !os.IsNotExist(err) {
		t.Errorf("input pipe file should be removed, stat err = %v", err)
	}
	if _, err := os.Stat(tr.outPath); !os.IsNotExist(err) {
		t.Errorf("output pipe file should be removed, stat err = %v", err)
	}
}

func TestTranscoder_initCancelledWhileWaitingForAttach(t *testing.T) {
	tr := NewTranscoder("", 0, nil)
	// A process that never opens either pipe.
	tr.newCommand = func(spec FormatSpec, inPath, outPath string) *exec.Cmd {
		return exec.Command("/bin/sleep", "10")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := tr.Init(ctx, FormatSpec{}, func(ctx context.Context, chunk []byte) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context deadline error, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Init did not honor cancellation while waiting for pipe attach")
	}
}

func TestTranscoder_spawnFailureTearsDownSession(t *testing.T) {
	tr := NewTranscoder("", 0, nil)
	tr.newCommand = func(spec FormatSpec, inPath, outPath string) *exec.Cmd {
		return exec.Command("/nonexistent/transcoder-binary")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// The spawn failure is detached; Init surfaces it only as a failed
	// pipe attach, never as the spawn error itself.
	err := tr.Init(ctx, FormatSpec{}, func(ctx context.Context, chunk []byte) error { return nil })
	if err == nil {
		t.Fatal("Init should fail once the session is torn down")
	}
	if !errors.Is(err, ErrPipeNotConnected) {
		t.Errorf("expected ErrPipeNotConnected, got %v", err)
	}
}

func TestFFmpegCommand_arguments(t *testing.T) {
	tr := NewTranscoder("/usr/bin/ffmpeg", 0, nil)
	cmd := tr.ffmpegCommand(FormatSpec{Codec: "libmp3lame", Format: "mp3", CustomArgs: "-b:a 192k"}, "/tmp/in.fifo", "/tmp/out.fifo")

	want := []string{
		"/usr/bin/ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-i", "/tmp/in.fifo",
		"-acodec", "libmp3lame",
		"-f", "mp3",
		"-b:a", "192k",
		"-y", "/tmp/out.fifo",
	}
	if len(cmd.Args) != len(want) {
		t.Fatalf("args = %v, want %v", cmd.Args, want)
	}
	for i := range want {
		if cmd.Args[i] != want[i] {
			t.Errorf("arg[%d] = %q, want %q", i, cmd.Args[i], want[i])
		}
	}
}
