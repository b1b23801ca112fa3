package server

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/simgate-dev/simgate/internal/errors"
)

// wsSink queues frames for one websocket connection. Frames are written by
// writePump; Send never blocks.
type wsSink struct {
	conn         *websocket.Conn
	send         chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
	pingInterval time.Duration
	metrics      *MetricsCollector
	logger       *slog.Logger
}

func newWSSink(conn *websocket.Conn, cfg *Config, metrics *MetricsCollector, logger *slog.Logger) *wsSink {
	return &wsSink{
		conn:         conn,
		send:         make(chan []byte, cfg.SendQueue),
		done:         make(chan struct{}),
		writeTimeout: cfg.WriteTimeout,
		pingInterval: cfg.ReadTimeout * 9 / 10,
		metrics:      metrics,
		logger:       logger,
	}
}

// Send queues frame. A full queue drops the frame.
func (s *wsSink) Send(frame []byte) error {
	select {
	case <-s.done:
		return ErrConnectionClosed
	default:
	}
	select {
	case s.send <- frame:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close stops the write pump, which closes the socket. It is idempotent.
func (s *wsSink) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// writePump writes queued frames and pings until the sink is closed or a
// write fails.
func (s *wsSink) writePump() {
	ticker := time.NewTicker(s.pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case frame := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				s.metrics.RecordWriteError()
				s.logger.Warn("write failed", "error", err)
				s.Close()
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}

		case <-s.done:
			s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}

// readLoop feeds inbound messages to the controller until the socket fails.
// Messages beyond the connection's rate limit are dropped.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, id string, logger *slog.Logger) {
	var limiter *rate.Limiter
	if s.config.MessagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.config.MessagesPerSecond), s.config.Burst)
	}

	conn.SetReadLimit(s.config.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	})

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.metrics.RecordReadError()
				logger.Warn("read error", "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		s.metrics.RecordMessageReceived(len(msg))

		if limiter != nil && !limiter.Allow() {
			s.metrics.RecordMessageDropped()
			logger.Warn("rate limit exceeded, message dropped")
			continue
		}
		if err := s.controller.HandleFrame(ctx, id, mt == websocket.BinaryMessage, msg); err != nil {
			logger.Debug("message failed", "error", describe(err))
		}
	}
}

// describe renders coded errors compactly for logs.
func describe(err error) string {
	var coded *errors.Error
	if stderrors.As(err, &coded) {
		return coded.FormatCompact()
	}
	return err.Error()
}
