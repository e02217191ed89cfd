// internal/browser/session/screencast.go
package session

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/meterpost/internal/recorder"
)

const screencastBuffer = 16

var _ recorder.Source = (*Session)(nil)

// Frames starts a JPEG screencast of the tab. The channel closes after ctx ends
// and the screencast has been stopped.
func (s *Session) Frames(ctx context.Context, opts recorder.StreamOptions) (<-chan recorder.Frame, error) {
	listenCtx, stop := CombineContext(s.ctx, ctx)

	raw := make(chan *page.EventScreencastFrame, screencastBuffer)
	chromedp.ListenTarget(listenCtx, func(ev any) {
		frame, ok := ev.(*page.EventScreencastFrame)
		if !ok {
			return
		}
		select {
		case raw <- frame:
		default:
			// Unacked frames stall the screencast, so a dropped one is still acked.
			go s.ackFrame(frame.SessionID)
		}
	})

	start := page.StartScreencast().WithFormat(page.ScreencastFormatJpeg).WithEveryNthFrame(1)
	if opts.Quality > 0 {
		start = start.WithQuality(opts.Quality)
	}
	if opts.Width > 0 {
		start = start.WithMaxWidth(opts.Width)
	}
	if opts.Height > 0 {
		start = start.WithMaxHeight(opts.Height)
	}
	if err := s.RunActions(ctx, start); err != nil {
		stop()
		return nil, fmt.Errorf("session: starting screencast: %w", err)
	}
	s.logger.Debug("Screencast started.", zap.Int64("max_width", opts.Width), zap.Int64("max_height", opts.Height))

	out := make(chan recorder.Frame)
	go func() {
		defer close(out)
		defer stop()
		for {
			select {
			case <-listenCtx.Done():
				if err := s.RunBackgroundActions(context.Background(), page.StopScreencast()); err != nil {
					s.logger.Debug("Stopping screencast failed.", zap.Error(err))
				}
				return
			case ev := <-raw:
				data, err := base64.StdEncoding.DecodeString(ev.Data)
				if err != nil {
					s.logger.Warn("Dropping undecodable screencast frame.", zap.Error(err))
					go s.ackFrame(ev.SessionID)
					continue
				}
				at := time.Now()
				if ev.Metadata != nil && ev.Metadata.Timestamp != nil {
					at = ev.Metadata.Timestamp.Time()
				}
				select {
				case out <- recorder.Frame{Data: data, Time: at}:
				case <-listenCtx.Done():
					continue
				}
				go s.ackFrame(ev.SessionID)
			}
		}
	}()
	return out, nil
}

func (s *Session) ackFrame(id int64) {
	if err := s.RunBackgroundActions(context.Background(), page.ScreencastFrameAck(id)); err != nil {
		s.logger.Debug("Screencast ack failed.", zap.Int64("frame_session", id), zap.Error(err))
	}
}
