// Package membership implements the election-only slice of Raft: a
// role state machine (FOLLOWER/CANDIDATE/LEADER), the follower/
// candidate/leader event loops that drive it, and the line-oriented
// TCP protocol peers use to exchange heartbeat and vote RPCs. See
// SPEC_FULL.md for the full requirements this package implements.
package membership

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CommandHandler processes one parsed request line's arguments and
// returns the success payload (placed after "+OK:" on the wire) or an
// error (mapped to "-ERR:<reason>" by wireReason).
type CommandHandler func(args []string) (string, error)

// CommandSpec pairs a handler with the number of arguments the parser
// must split the remainder of the line into (spec §4.1's "arity").
type CommandSpec struct {
	Handler CommandHandler
	Arity   int
}

// CommandTable is the enumerated command-name -> (handler, arity)
// mapping Serve dispatches against (spec §4.1).
type CommandTable map[string]CommandSpec

// acceptPollInterval bounds how often the accept loop checks for
// cancellation, matching the teacher's SetDeadline-and-retry pattern
// in pkg/replication/transport.go's ClusterTransport.Listen.
const acceptPollInterval = 500 * time.Millisecond

// Serve runs the line-oriented TCP server for this node until ctx is
// cancelled or the listener suffers an unrecoverable error (spec
// §4.1). addr is the bind address (host:port joined by Config).
func Serve(ctx context.Context, addr string, commands CommandTable, log zerolog.Logger) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	defer listener.Close()

	log.Info().Str("addr", addr).Msg("transport listening")

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		if tl, ok := listener.(*net.TCPListener); ok {
			tl.SetDeadline(time.Now().Add(acceptPollInterval))
		}

		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}

		go handleConnection(ctx, conn, commands, log)
	}
}

// handleConnection reads successive request lines from one accepted
// connection until EOF or cancellation, writing one response line per
// request, in arrival order (spec §4.1, testable property 8).
func handleConnection(ctx context.Context, conn net.Conn, commands CommandTable, log zerolog.Logger) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	remote := conn.RemoteAddr().String()

	for {
		if ctx.Err() != nil {
			return
		}

		line, err := reader.ReadString('\n')
		if line == "" && err != nil {
			// Client closed before sending anything further; drain
			// and close (spec §4.1).
			return
		}

		line = strings.TrimRight(line, "\r\n")
		if line != "" {
			payload, handlerErr := dispatch(line, commands)

			var response string
			if handlerErr == nil {
				response = "+OK:" + payload
			} else {
				response = "-ERR:" + wireReason(handlerErr)
				log.Debug().
					Str("remote", remote).
					Str("request", line).
					Err(handlerErr).
					Msg("request failed")
			}

			if _, writeErr := conn.Write([]byte(response + "\r\n")); writeErr != nil {
				return
			}
		}

		if err != nil {
			// EOF (or other read error) after processing whatever was
			// on the line: the client is gone.
			return
		}
	}
}

// dispatch parses one request line into (cmd, args) and invokes the
// matching handler (spec §4.1's parser). Unknown commands and arity
// mismatches both surface as ErrUnknownCommand/ErrArity, which
// wireReason maps to -ERR:UNKNOWN_ERROR, never crashing the
// connection handler (spec §7).
func dispatch(line string, commands CommandTable) (payload string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	cmd, rest, _ := strings.Cut(line, " ")
	spec, ok := commands[cmd]
	if !ok {
		return "", ErrUnknownCommand
	}

	var args []string
	if spec.Arity > 0 {
		rest = strings.TrimLeft(rest, " ")
		if rest == "" {
			return "", ErrArity
		}
		args = strings.SplitN(rest, " ", spec.Arity)
		if len(args) != spec.Arity {
			return "", ErrArity
		}
	}

	return spec.Handler(args)
}

// Call opens a fresh TCP connection to host:port, writes line+'\n',
// reads a single response line, closes the connection, and returns
// the response without its trailing terminator (spec §4.1). Each call
// is a brand-new connection: two Calls to the same (host, port) are
// independent (spec §8, testable property 9).
func Call(ctx context.Context, host string, port int, line string) (string, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	correlationID := uuid.NewString()[:8]

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		if isConnRefused(err) {
			return "", fmt.Errorf("call %s [%s]: %w", addr, correlationID, ErrConnRefused)
		}
		return "", fmt.Errorf("call %s [%s]: %w", addr, correlationID, ErrIO)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if _, err := conn.Write([]byte(line + "\n")); err != nil {
		return "", fmt.Errorf("call %s [%s]: write: %w", addr, correlationID, ErrIO)
	}

	reader := bufio.NewReader(conn)
	resp, err := reader.ReadString('\n')
	if err != nil && resp == "" {
		return "", fmt.Errorf("call %s [%s]: read: %w", addr, correlationID, ErrIO)
	}

	return strings.TrimRight(resp, "\r\n"), nil
}

func isConnRefused(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return strings.Contains(opErr.Err.Error(), "refused") || strings.Contains(opErr.Err.Error(), "connect")
	}
	return strings.Contains(err.Error(), "refused")
}
