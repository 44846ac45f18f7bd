package stream

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kleeedolinux/stream.go/debug"
	"github.com/kleeedolinux/stream.go/stream/transport"
)

// session is the task group behind one connection: a reader, a writer and a
// heartbeat sharing the outbound queue.
type session struct {
	client *Client
	conn   transport.Conn
	out    *frameQueue

	ctx      context.Context
	cancel   context.CancelFunc
	group    *errgroup.Group
	haltOnce sync.Once
}

func newSession(c *Client, conn transport.Conn) *session {
	ctx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(ctx)

	return &session{
		client: c,
		conn:   conn,
		out:    newFrameQueue(),
		ctx:    groupCtx,
		cancel: cancel,
		group:  group,
	}
}

func (s *session) start() {
	s.group.Go(s.readLoop)
	s.group.Go(s.writeLoop)
	s.group.Go(s.heartbeatLoop)
}

// halt cancels the tasks and closes the connection so a blocked read returns.
// Frames still queued are discarded.
func (s *session) halt() {
	s.haltOnce.Do(func() {
		s.out.close()
		s.cancel()
		s.conn.Close()
	})
}

// stop halts the session and waits for its tasks to exit.
func (s *session) stop() {
	s.halt()
	_ = s.group.Wait()
}

// enqueue queues f for the writer. It fails only once the session is halted.
func (s *session) enqueue(f transport.Frame) error {
	if s.ctx.Err() != nil || !s.out.push(f) {
		return ErrNotConnected
	}
	return nil
}

func (s *session) readLoop() error {
	c := s.client

	for {
		if s.ctx.Err() != nil {
			return nil
		}

		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			c.markDown(s, "reader", err)
			return err
		}

		if mt != transport.TextMessage {
			c.metrics.frameReceived("binary")
			continue
		}

		ev, kind, err := decodeFrame(data)
		if err != nil {
			c.decodeFailed(data, err)
			continue
		}
		c.metrics.frameReceived(kind.String())
		if kind == envelopeNone {
			continue
		}

		if !c.events.push(ev) {
			debug.Printf("Client %s: Event queue closed, stopping reader", c.id)
			c.markDown(s, "reader", nil)
			return nil
		}
	}
}

func (s *session) writeLoop() error {
	c := s.client

	for {
		f, ok := s.out.pop()
		if !ok {
			select {
			case <-s.ctx.Done():
				return nil
			case <-s.out.ready:
			}
			continue
		}
		if s.ctx.Err() != nil {
			return nil
		}

		if err := s.conn.WriteFrame(f); err != nil {
			c.markDown(s, "writer", err)
			return err
		}
		c.metrics.frameSent(f.Type)
	}
}

func (s *session) heartbeatLoop() error {
	c := s.client

	ticks, stop := c.tick(c.cfg.HeartbeatInterval)
	defer stop()

	for {
		select {
		case <-s.ctx.Done():
			return nil
		case <-ticks:
			if !c.live(s) {
				return nil
			}
			if err := s.enqueue(transport.PingFrame()); err != nil {
				c.markDown(s, "heartbeat", err)
				return err
			}
		}
	}
}
