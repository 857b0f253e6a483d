package kabu

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Stream reads execution notices from the brokerage websocket and delivers
// them on a channel. The engine uses these only for logging and alerting;
// decision state comes from the per-cycle holdings query, so a dropped
// notice is harmless.
type Stream struct {
	url  string
	log  zerolog.Logger
	seen map[string]bool
}

func NewStream(cfg Config, log zerolog.Logger) *Stream {
	return &Stream{url: cfg.WSURL, log: log, seen: map[string]bool{}}
}

// Run connects and forwards notices until ctx is cancelled, reconnecting
// with a fixed backoff on any read or dial failure. The returned channel
// closes when Run exits.
func (s *Stream) Run(ctx context.Context) <-chan ExecutionNotice {
	out := make(chan ExecutionNotice, 16)

	go func() {
		defer close(out)
		for ctx.Err() == nil {
			if err := s.readLoop(ctx, out); err != nil && ctx.Err() == nil {
				s.log.Warn().Err(err).Msg("execution stream dropped, reconnecting")
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
		}
	}()

	return out
}

func (s *Stream) readLoop(ctx context.Context, out chan<- ExecutionNotice) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Unblock ReadMessage when the context ends.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var notice ExecutionNotice
		if err := json.Unmarshal(msg, &notice); err != nil {
			s.log.Debug().Err(err).Msg("skipping unparseable push message")
			continue
		}
		// The feed re-sends terminal states; deliver each order once.
		if notice.OrderID == "" || s.seen[notice.OrderID] {
			continue
		}
		s.seen[notice.OrderID] = true

		select {
		case out <- notice:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
