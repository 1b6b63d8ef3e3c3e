package radio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"radio-hls-relay/internal/platform/logger"

	"github.com/google/uuid"
)

const (
	// connectTimeout bounds how long Init waits for the spawned process to
	// attach to the input pipe before giving up.
	connectTimeout = 30 * time.Second

	// DefaultPipeBufferBytes sizes the reused output-pipe read buffer.
	DefaultPipeBufferBytes = 32 * 1024

	attachPollInterval = 50 * time.Millisecond
)

// OutputFunc receives each chunk read from the transcoder's output pipe,
// exactly the bytes of one completed read, in read order.
type OutputFunc func(ctx context.Context, chunk []byte) error

// FormatSpec is the target encoding applied verbatim to the transcoder
// invocation.
type FormatSpec struct {
	Codec      string // -acodec value, e.g. "copy", "libmp3lame"
	Format     string // -f value, e.g. "adts", "mp3"
	CustomArgs string // extra arguments inserted before the output
}

// Transcoder session states.
const (
	stateCreated = iota
	stateAwaitingConnection
	stateStreaming
	stateClosed
)

// Transcoder supervises one external transcoding process for one client
// connection. Segment bytes go in over one named pipe and converted bytes
// come back over another, so the subprocess applies its own backpressure
// and output reaches the client incrementally, without temp files.
type Transcoder struct {
	binary  string
	bufSize int
	log     *slog.Logger

	inPath  string
	outPath string

	mu      sync.Mutex
	state   int
	inPipe  *os.File
	outPipe *os.File
	cmd     *exec.Cmd

	closeOnce sync.Once
	done      chan struct{}
	readDone  chan struct{}

	// newCommand builds the subprocess invocation; replaced in tests.
	newCommand func(spec FormatSpec, inPath, outPath string) *exec.Cmd
}

// NewTranscoder allocates a session with fresh pipe identities. The process
// is not started until Init. Non-positive pipeBufferBytes falls back to the
// default; empty binary means "ffmpeg" from PATH.
func NewTranscoder(binary string, pipeBufferBytes int, log *slog.Logger) *Transcoder {
	if binary == "" {
		binary = "ffmpeg"
	}
	if pipeBufferBytes <= 0 {
		pipeBufferBytes = DefaultPipeBufferBytes
	}
	if log == nil {
		log = logger.Discard()
	}
	id := uuid.NewString()
	t := &Transcoder{
		binary:   binary,
		bufSize:  pipeBufferBytes,
		log:      log,
		inPath:   pipePath("in", id),
		outPath:  pipePath("out", id),
		state:    stateCreated,
		done:     make(chan struct{}),
		readDone: make(chan struct{}),
	}
	t.newCommand = t.ffmpegCommand
	return t
}

// pipePath resolves the transport path for a pipe endpoint on this
// platform: a FIFO under the temp directory.
func pipePath(role, id string) string {
	return filepath.Join(os.TempDir(), "radio_"+role+"_"+id+".fifo")
}

func (t *Transcoder) ffmpegCommand(spec FormatSpec, inPath, outPath string) *exec.Cmd {
	args := []string{"-hide_banner", "-loglevel", "error", "-i", inPath}
	if spec.Codec != "" {
		args = append(args, "-acodec", spec.Codec)
	}
	if spec.Format != "" {
		args = append(args, "-f", spec.Format)
	}
	if spec.CustomArgs != "" {
		args = append(args, strings.Fields(spec.CustomArgs)...)
	}
	args = append(args, "-y", outPath)
	return exec.Command(t.binary, args...)
}

// Init creates both pipes, starts the transcoder process, and waits up to
// connectTimeout for the process to attach to the input pipe, so the caller
// never writes into a pipe nobody is reading. The process is
// supervised by a detached goroutine: failures after this point are logged
// and tear the session down, they are not returned here.
func (t *Transcoder) Init(ctx context.Context, spec FormatSpec, onOutput OutputFunc) error {
	if err := syscall.Mkfifo(t.inPath, 0o600); err != nil {
		return fmt.Errorf("create input pipe: %w", err)
	}
	if err := syscall.Mkfifo(t.outPath, 0o600); err != nil {
		os.Remove(t.inPath)
		return fmt.Errorf("create output pipe: %w", err)
	}

	t.mu.Lock()
	t.state = stateAwaitingConnection
	t.mu.Unlock()

	go t.supervise(t.newCommand(spec, t.inPath, t.outPath))
	go t.watchContext(ctx)
	go t.readLoop(ctx, onOutput)

	if err := t.awaitInputAttach(ctx); err != nil {
		t.Close()
		return err
	}
	return nil
}

// awaitInputAttach opens the write end of the input pipe once the spawned
// process has attached a reader. A FIFO write end cannot be opened without
// a reader (ENXIO), so the successful open is the attach signal. The fd
// stays non-blocking; the runtime poller parks writers instead of blocking
// a thread.
func (t *Transcoder) awaitInputAttach(ctx context.Context) error {
	deadline := time.Now().Add(connectTimeout)
	for {
		f, err := os.OpenFile(t.inPath, os.O_WRONLY|syscall.O_NONBLOCK, 0)
		if err == nil {
			t.mu.Lock()
			if t.state == stateClosed {
				t.mu.Unlock()
				f.Close()
				return ErrPipeNotConnected
			}
			t.inPipe = f
			t.mu.Unlock()
			return nil
		}
		if errors.Is(err, syscall.ENOENT) {
			// Pipe file already removed: the session was torn down.
			return ErrPipeNotConnected
		}
		if !errors.Is(err, syscall.ENXIO) {
			return fmt.Errorf("open input pipe: %w", err)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("transcoder did not attach to input pipe within %s", connectTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.done:
			return ErrPipeNotConnected
		case <-time.After(attachPollInterval):
		}
	}
}

// supervise starts and waits on the subprocess, detached from Init's call
// stack. Spawn and exit failures end the session and are logged, never
// propagated to the caller.
func (t *Transcoder) supervise(cmd *exec.Cmd) {
	t.mu.Lock()
	if t.state == stateClosed {
		t.mu.Unlock()
		return
	}
	err := cmd.Start()
	if err == nil {
		t.cmd = cmd
	}
	t.mu.Unlock()

	if err != nil {
		t.log.Error("transcoder spawn failed", "binary", t.binary, "error", err)
		t.Close()
		return
	}

	err = cmd.Wait()
	select {
	case <-t.done:
		// Session already torn down; the exit status is ours (signal).
	default:
		if err != nil {
			t.log.Error("transcoder exited", "error", err)
		} else {
			t.log.Debug("transcoder exited")
			// Clean exit: let the read loop drain what is left in the
			// output pipe before the pipes go away.
			select {
			case <-t.readDone:
			case <-time.After(5 * time.Second):
			}
		}
	}
	t.Close()
}

func (t *Transcoder) watchContext(ctx context.Context) {
	select {
	case <-ctx.Done():
		t.Close()
	case <-t.done:
	}
}

// readLoop blocks until the process attaches to the output pipe, then
// forwards every completed read to onOutput until the pipe drains or the
// session closes. Detached like supervise: its failures are logged and end
// only this session.
func (t *Transcoder) readLoop(ctx context.Context, onOutput OutputFunc) {
	defer t.Close()
	defer close(t.readDone)

	// Blocking open: returns once the process opens the pipe for writing.
	// Close releases it by briefly attaching a throwaway writer.
	out, err := os.OpenFile(t.outPath, os.O_RDONLY, 0)
	if err != nil {
		if !t.closed() {
			t.log.Error("open output pipe", "error", err)
		}
		return
	}

	t.mu.Lock()
	if t.state == stateClosed {
		t.mu.Unlock()
		out.Close()
		return
	}
	t.outPipe = out
	t.state = stateStreaming
	t.mu.Unlock()

	buf := make([]byte, t.bufSize)
	for {
		n, err := out.Read(buf)
		if n > 0 {
			if cbErr := onOutput(ctx, buf[:n]); cbErr != nil {
				if ctx.Err() == nil && !t.closed() {
					t.log.Info("output sink rejected write", "error", cbErr)
				}
				return
			}
		}
		if err != nil {
			if err != io.EOF && ctx.Err() == nil && !t.closed() {
				t.log.Error("output pipe read", "error", err)
			}
			return
		}
	}
}

// Feed writes one downloaded segment into the input pipe. The write blocks
// while the process is not draining its input; that backpressure is what
// keeps segment data out of process memory. Fails with ErrPipeNotConnected
// when the process has not attached or the session is closed.
func (t *Transcoder) Feed(ctx context.Context, data []byte) error {
	t.mu.Lock()
	in := t.inPipe
	closed := t.state == stateClosed
	t.mu.Unlock()

	if closed || in == nil {
		return ErrPipeNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := in.Write(data); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrPipeNotConnected, err)
	}
	return nil
}

// Drain closes the input side so the process can flush whatever output is
// still buffered, then waits for the session to wind down. Used on the
// end-of-stream path; cancellation skips straight to Close.
func (t *Transcoder) Drain(ctx context.Context) {
	t.mu.Lock()
	in := t.inPipe
	t.inPipe = nil
	t.mu.Unlock()

	if in != nil {
		in.Close()
	}
	select {
	case <-t.done:
	case <-ctx.Done():
	}
}

// Close tears the session down: both pipe ends, the FIFO files, and the
// process, released exactly once. Safe to call from any goroutine and any
// state; subsequent calls are no-ops.
func (t *Transcoder) Close() {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.state = stateClosed
		in, out, cmd := t.inPipe, t.outPipe, t.cmd
		t.inPipe, t.outPipe = nil, nil
		t.mu.Unlock()

		close(t.done)

		if in != nil {
			in.Close()
		}
		// Release a read loop still blocked opening the output pipe.
		if w, err := os.OpenFile(t.outPath, os.O_WRONLY|syscall.O_NONBLOCK, 0); err == nil {
			w.Close()
		}
		if out != nil {
			out.Close()
		}
		if cmd != nil && cmd.Process != nil {
			cmd.Process.Kill()
		}
		os.Remove(t.inPath)
		os.Remove(t.outPath)
	})
}

func (t *Transcoder) closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == stateClosed
}
