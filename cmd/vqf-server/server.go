package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

const (
	rejectionTimeout          = 500 * time.Millisecond
	errMaxConnectionsResponse = "-ERR max number of clients reached\r\n"
)

// serve starts the TCP command server and blocks until shutdown: a
// semaphore channel caps concurrent connections, and a signal-handling
// goroutine drains in-flight requests before returning.
func (app *application) serve() error {
	addr := fmt.Sprintf(":%d", app.config.port)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	app.listener = ln
	serverAddr := ln.Addr().String()

	if app.readyCh != nil {
		close(app.readyCh)
	}

	shutdownError := make(chan error)
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.logger.Info("caught signal", "signal", s.String(), "address", serverAddr)
		app.logger.Info("shutting down server", "address", serverAddr)

		ctx, cancel := context.WithTimeout(context.Background(), app.config.shutdownTimeout)
		defer cancel()

		if err := ln.Close(); err != nil {
			shutdownError <- err
		}

		wgDone := make(chan struct{})
		go func() {
			app.wg.Wait()
			close(wgDone)
		}()

		select {
		case <-wgDone:
			shutdownError <- nil
		case <-ctx.Done():
			shutdownError <- ctx.Err()
		}
	}()

	app.logger.Info("server starting", "address", serverAddr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			app.logger.Error("failed to accept connection", "error", err, "address", serverAddr)
			continue
		}

		select {
		case app.connLimiter <- struct{}{}:
			app.wg.Add(1)
			go app.handleConnection(conn)
		default:
			app.logger.Info("rejecting connection, limit reached", "remote_addr", conn.RemoteAddr().String())
			_ = conn.SetWriteDeadline(time.Now().Add(rejectionTimeout))
			_, _ = conn.Write([]byte(errMaxConnectionsResponse))
			_ = conn.Close()
		}
	}

	err = <-shutdownError
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		app.logger.Error("server stopped with error", "error", err, "address", serverAddr)
		return err
	}

	app.logger.Info("server stopped gracefully", "address", serverAddr)
	return nil
}

// handleConnection manages the lifecycle of a single client connection,
// with a buffered writer flushed on QUIT or whenever the parser has no more
// pipelined input already buffered.
func (app *application) handleConnection(conn net.Conn) {
	defer func() { <-app.connLimiter }()
	defer app.wg.Done()
	defer func() { _ = conn.Close() }()

	app.metrics.connectionsTotal.Inc()

	remoteAddr := conn.RemoteAddr().String()
	app.logger.Info("new connection", "remote_addr", remoteAddr)

	parser := NewParser(conn)
	writer := bufio.NewWriterSize(conn, 4096)
	defer func() { _ = writer.Flush() }()

	if app.config.idleTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(app.config.idleTimeout)); err != nil {
			app.logger.Error("failed to set initial read deadline", "error", err, "remote_addr", remoteAddr)
			return
		}
	}

	for {
		if app.config.idleTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(app.config.idleTimeout)); err != nil {
				app.logger.Error("failed to set read deadline", "error", err, "remote_addr", remoteAddr)
				return
			}
		}

		parts, err := parser.Parse()
		if err != nil {
			if err == io.EOF {
				app.logger.Info("client disconnected", "remote_addr", remoteAddr)
			} else {
				app.logger.Error("parser error", "error", err, "remote_addr", remoteAddr)
			}
			return
		}

		app.router.Dispatch(app, writer, parts)

		if len(parts) > 0 && strings.EqualFold(parts[0], "QUIT") {
			_ = writer.Flush()
			return
		}

		if parser.Buffered() == 0 {
			if err := writer.Flush(); err != nil {
				app.logger.Error("failed to flush response", "error", err, "remote_addr", remoteAddr)
				return
			}
		}
	}
}
