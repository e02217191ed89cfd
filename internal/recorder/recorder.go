// internal/recorder/recorder.go
package recorder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/meterpost/internal/config"
)

const (
	framePattern = "frame-%06d.jpg"
	listName     = "frames.txt"
)

var (
	// ErrNotStarted is returned by Stop when Start was never called or already stopped.
	ErrNotStarted = errors.New("recorder: not started")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("recorder: already started")
	// ErrNoFrames means the stream ended without producing a single frame.
	ErrNoFrames = errors.New("recorder: no frames captured")
)

// Frame is one compressed screenshot.
type Frame struct {
	Data []byte
	Time time.Time
}

// StreamOptions bound the frames a Source produces.
type StreamOptions struct {
	Width   int64
	Height  int64
	Quality int64
}

// Source streams frames until ctx is done, then closes the channel.
type Source interface {
	Frames(ctx context.Context, opts StreamOptions) (<-chan Frame, error)
}

// Encoder turns a concat list of timed frames into a video.
type Encoder interface {
	Encode(ctx context.Context, list string, fps int, output string) error
}

type frameEntry struct {
	name string
	at   time.Time
}

// Recorder captures a Source to numbered JPEG files and encodes them on Stop.
type Recorder struct {
	src    Source
	enc    Encoder
	cfg    config.RecorderConfig
	logger *zap.Logger

	mu     sync.Mutex
	runID  string
	dir    string
	cancel context.CancelFunc
	group  *errgroup.Group
	frames []frameEntry
}

// New creates a Recorder. enc may be nil, in which case frames are kept on disk.
func New(src Source, enc Encoder, cfg config.RecorderConfig, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		src:    src,
		enc:    enc,
		cfg:    cfg,
		logger: logger.Named("recorder"),
	}
}

// Dir returns the frame directory of the current or last run.
func (r *Recorder) Dir() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dir
}

// Start subscribes to the source and writes frames in the background.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return ErrAlreadyStarted
	}

	r.runID = uuid.New().String()
	if err := r.prepareDir(); err != nil {
		return err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	frames, err := r.src.Frames(streamCtx, StreamOptions{
		Width:   r.cfg.Width,
		Height:  r.cfg.Height,
		Quality: r.cfg.Quality,
	})
	if err != nil {
		cancel()
		_ = os.RemoveAll(r.dir)
		return fmt.Errorf("recorder: starting stream: %w", err)
	}

	r.cancel = cancel
	r.frames = nil
	r.group = new(errgroup.Group)
	r.group.Go(func() error {
		return r.write(frames, cancel)
	})

	r.logger.Info("Recording started.", zap.String("run_id", r.runID), zap.String("dir", r.dir))
	return nil
}

func (r *Recorder) prepareDir() error {
	if r.cfg.FramesDir == "" {
		dir, err := os.MkdirTemp("", "meterpost-frames-*")
		if err != nil {
			return fmt.Errorf("recorder: creating frame directory: %w", err)
		}
		r.dir = dir
		return nil
	}
	r.dir = filepath.Join(r.cfg.FramesDir, r.runID)
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("recorder: creating frame directory: %w", err)
	}
	return nil
}

// write drains frames to disk. On a write failure it cancels the stream and keeps
// draining so the source can shut down.
func (r *Recorder) write(frames <-chan Frame, cancel context.CancelFunc) error {
	var (
		firstErr error
		n        int
	)
	for f := range frames {
		if firstErr != nil {
			continue
		}
		n++
		name := fmt.Sprintf(framePattern, n)
		if err := os.WriteFile(filepath.Join(r.dir, name), f.Data, 0o644); err != nil {
			firstErr = fmt.Errorf("recorder: writing frame %d: %w", n, err)
			cancel()
			continue
		}
		at := f.Time
		if at.IsZero() {
			at = time.Now()
		}
		r.mu.Lock()
		r.frames = append(r.frames, frameEntry{name: name, at: at})
		r.mu.Unlock()
	}
	return firstErr
}

// Stop ends the stream, waits for pending writes and encodes the video. It returns
// the output path, or "" when encoding was skipped.
func (r *Recorder) Stop(ctx context.Context) (string, error) {
	r.mu.Lock()
	cancel, group := r.cancel, r.group
	r.cancel, r.group = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return "", ErrNotStarted
	}

	cancel()
	done := make(chan error, 1)
	go func() { done <- group.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			return "", err
		}
	case <-ctx.Done():
		return "", fmt.Errorf("recorder: waiting for frame writer: %w", ctx.Err())
	}

	r.mu.Lock()
	frames := append([]frameEntry(nil), r.frames...)
	dir := r.dir
	r.mu.Unlock()

	r.logger.Info("Recording stopped.", zap.Int("frames", len(frames)))
	if len(frames) == 0 {
		return "", ErrNoFrames
	}

	list, err := writeConcatList(dir, frames, r.fps())
	if err != nil {
		return "", err
	}

	if r.enc == nil {
		r.logger.Warn("No video encoder configured; frames left on disk.", zap.String("dir", dir))
		return "", nil
	}
	output := r.cfg.Output
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return "", fmt.Errorf("recorder: creating output directory: %w", err)
	}
	if err := r.enc.Encode(ctx, list, r.fps(), output); err != nil {
		if errors.Is(err, ErrEncoderNotFound) {
			r.logger.Warn("ffmpeg not found; frames left on disk.", zap.String("dir", dir))
			return "", nil
		}
		return "", err
	}

	r.logger.Info("Video written.", zap.String("output", output))
	if !r.cfg.KeepFrames {
		if err := os.RemoveAll(dir); err != nil {
			r.logger.Warn("Could not remove frame directory.", zap.String("dir", dir), zap.Error(err))
		}
	}
	return output, nil
}

func (r *Recorder) fps() int {
	if r.cfg.FPS > 0 {
		return r.cfg.FPS
	}
	return config.DefaultRecorderFPS
}

// writeConcatList writes an ffmpeg concat script in which each frame lasts until
// the next one arrived. The last frame is shown for one output frame.
func writeConcatList(dir string, frames []frameEntry, fps int) (string, error) {
	path := filepath.Join(dir, listName)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("recorder: creating frame list: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	minDur := time.Second / time.Duration(fps)
	for i, fr := range frames {
		d := minDur
		if i+1 < len(frames) {
			if gap := frames[i+1].at.Sub(fr.at); gap > 0 {
				d = gap
			}
		}
		fmt.Fprintf(w, "file '%s'\nduration %.6f\n", fr.name, d.Seconds())
	}
	// The concat demuxer ignores the duration of the final entry unless it is repeated.
	fmt.Fprintf(w, "file '%s'\n", frames[len(frames)-1].name)
	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("recorder: writing frame list: %w", err)
	}
	return path, f.Close()
}
