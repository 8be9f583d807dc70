package http

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// conn is one accepted connection and the buffers of the worker serving it.
type conn struct {
	id     string
	rwc    net.Conn
	reader *Reader
	bw     *bufio.Writer

	// guarded by Server.mu
	idle bool
}

// serveConn loops AWAIT-REQUEST -> DISPATCH -> RESPOND until the peer ends
// the stream, asks for close, or the exchange fails on the wire.
func (s *Server) serveConn(rwc net.Conn, br *bufio.Reader, bw *bufio.Writer) {
	c := &conn{
		id:     uuid.NewString(),
		rwc:    rwc,
		reader: NewReader(br),
		bw:     bw,
	}
	c.reader.MaxLineBytes = s.MaxLineBytes
	c.reader.MaxBodyBytes = s.MaxBodyBytes

	ctx := context.Background()
	logger := s.Logger.With("conn", c.id, "remote", remoteAddr(rwc))

	s.trackConn(c, true)
	connActiveCnt.Add(ctx, 1)
	defer func() {
		s.trackConn(c, false)
		connActiveCnt.Add(ctx, -1)
		if err := rwc.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Debug("closing connection failed", "error", err)
		}
	}()

	for served := 0; ; served++ {
		if !s.markIdle(c) {
			logger.Debug("server shutting down, closing connection", "served", served)
			return
		}

		if s.IdleTimeout > 0 {
			if err := rwc.SetReadDeadline(time.Now().Add(s.IdleTimeout)); err != nil {
				logger.Debug("setting idle deadline failed", "error", err)
			}
		}

		// a connection stops being idle with the first byte of a request
		if err := c.reader.Peek(); err != nil {
			s.logReadError(logger, err, served)
			return
		}

		s.markActive(c)

		req, err := c.reader.Next()
		if err != nil {
			s.logReadError(logger, err, served)
			return
		}

		if s.IdleTimeout > 0 {
			if err := rwc.SetReadDeadline(time.Time{}); err != nil {
				logger.Debug("clearing idle deadline failed", "error", err)
			}
		}

		start := time.Now()
		res := s.dispatch(ctx, logger, req)

		if err := res.Write(c.bw); err != nil {
			logger.Warn("writing response failed", "error", err, "method", req.Method, "path", req.Path)
			return
		}

		requestDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("http.request.method", req.Method)))

		if req.WantsClose() {
			logger.Debug("client requested close", "served", served+1)
			return
		}
	}
}

// dispatch resolves and runs the handler. Handler errors and panics are
// contained here and answered with 500.
func (s *Server) dispatch(ctx context.Context, logger *slog.Logger, req *Request) *Response {
	ctx, span := tracer.Start(ctx, "http.request",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.Path),
			attribute.String("network.protocol.version", req.Version),
		))
	defer span.End()

	handler := RecoverMiddleware()(s.Router.Route(req.Method, req.Path))

	res, err := handler(ctx, req)
	if err == nil && res == nil {
		err = ErrNoResponse
	}
	if err != nil {
		handlerErr := &HandlerError{Method: req.Method, Path: req.Path, Err: err}
		logger.ErrorContext(ctx, "handler failed", "error", handlerErr)
		span.RecordError(handlerErr)
		handlerFailCnt.Add(ctx, 1, metric.WithAttributes(
			attribute.Bool("panic", errors.Is(err, ErrHandlerPanic))))

		res = InternalServerError(req.Version, StatusText(StatusInternalServerError))
	}

	span.SetAttributes(attribute.Int("http.response.status_code", int(res.Status)))
	if res.Status >= 500 {
		span.SetStatus(codes.Error, res.Reason)
	}
	requestCnt.Add(ctx, 1, metric.WithAttributes(
		attribute.String("http.request.method", req.Method),
		attribute.String("http.response.status_code", strconv.Itoa(int(res.Status)))))

	return res
}

func (s *Server) logReadError(logger *slog.Logger, err error, served int) {
	var parseErr *ParseError
	switch {
	case errors.Is(err, io.EOF):
		logger.Debug("connection closed by peer", "served", served)
	case errors.As(err, &parseErr):
		logger.Warn("dropping connection on unreadable request", "error", err, "served", served)
	case errors.Is(err, os.ErrDeadlineExceeded):
		logger.Debug("connection idle timeout", "served", served)
	case s.inShutdown.Load():
		logger.Debug("connection closed for shutdown", "served", served)
	default:
		logger.Warn("reading request failed", "error", err, "served", served)
	}
}

func remoteAddr(rwc net.Conn) string {
	if addr := rwc.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
