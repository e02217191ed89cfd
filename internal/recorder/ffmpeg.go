// internal/recorder/ffmpeg.go
package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ErrEncoderNotFound means no ffmpeg binary could be located.
var ErrEncoderNotFound = errors.New("recorder: ffmpeg not found")

// FFmpeg encodes frame lists with an ffmpeg binary.
type FFmpeg struct {
	// Path is an explicit binary; empty means "ffmpeg" on PATH.
	Path   string
	Logger *zap.Logger
}

var _ Encoder = (*FFmpeg)(nil)

func (f *FFmpeg) binary() (string, error) {
	name := f.Path
	if name == "" {
		name = "ffmpeg"
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncoderNotFound, err)
	}
	return path, nil
}

// Args builds the ffmpeg command line for a concat list.
func (f *FFmpeg) Args(list string, fps int, output string) []string {
	return []string{
		"-y",
		"-loglevel", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", list,
		// yuv420p needs even dimensions.
		"-vf", "fps=" + strconv.Itoa(fps) + ",scale=trunc(iw/2)*2:trunc(ih/2)*2",
		"-pix_fmt", "yuv420p",
		"-c:v", "libx264",
		output,
	}
}

func (f *FFmpeg) Encode(ctx context.Context, list string, fps int, output string) error {
	bin, err := f.binary()
	if err != nil {
		return err
	}
	args := f.Args(list, fps, output)
	if f.Logger != nil {
		f.Logger.Debug("Running ffmpeg.", zap.String("bin", bin), zap.Strings("args", args))
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 512 {
			msg = msg[len(msg)-512:]
		}
		return fmt.Errorf("recorder: ffmpeg failed: %w: %s", err, msg)
	}
	return nil
}
