// Package redis implements cache.Store over the Redis RESP protocol with a
// small homegrown client, avoiding a driver dependency for the three
// commands the cache needs.
package redis

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/forumkit/forumkit/cache"
)

// Store implements cache.Store backed by Redis.
type Store struct {
	opts   Options
	dialFn dialFunc
	pool   chan *conn
}

type dialFunc func(context.Context, Options) (net.Conn, error)

type conn struct {
	nc net.Conn
	rd *bufio.Reader
}

// NewStore builds a Redis-backed cache store. Connections are created
// lazily and recycled through a bounded pool.
func NewStore(opts Options) *Store {
	cfg := opts.withDefaults()
	return &Store{opts: cfg, dialFn: defaultDial, pool: make(chan *conn, cfg.PoolSize)}
}

// WithDial overrides the dialer (used by tests to point at a fake server).
func (s *Store) WithDial(fn dialFunc) {
	if fn != nil {
		s.dialFn = fn
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := s.do(ctx, func(c *conn) error {
		if err := writeCommand(c.nc, "GET", key); err != nil {
			return err
		}
		reply, err := readReply(c.rd)
		if err != nil {
			return err
		}
		switch v := reply.(type) {
		case nil:
			return cache.ErrNotFound
		case []byte:
			payload = append([]byte(nil), v...)
			return nil
		default:
			return fmt.Errorf("redis: unexpected GET reply %T", reply)
		}
	})
	return payload, err
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := []string{"SET", key, string(value)}
	if ttl > 0 {
		ms := ttl.Milliseconds()
		if ms == 0 {
			ms = 1
		}
		args = append(args, "PX", strconv.FormatInt(ms, 10))
	}
	return s.do(ctx, func(c *conn) error {
		if err := writeCommand(c.nc, args...); err != nil {
			return err
		}
		reply, err := readReply(c.rd)
		if err != nil {
			return err
		}
		if msg, ok := reply.(string); ok && strings.EqualFold(msg, "OK") {
			return nil
		}
		return fmt.Errorf("redis: SET failed: %v", reply)
	})
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.do(ctx, func(c *conn) error {
		if err := writeCommand(c.nc, "DEL", key); err != nil {
			return err
		}
		reply, err := readReply(c.rd)
		if err != nil {
			return err
		}
		if n, ok := reply.(int64); ok {
			if n == 0 {
				return cache.ErrNotFound
			}
			return nil
		}
		return fmt.Errorf("redis: DEL failed: %v", reply)
	})
}

func (s *Store) do(ctx context.Context, fn func(*conn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c, err := s.acquire(ctx)
	if err != nil {
		return err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.nc.SetDeadline(deadline)
	} else {
		_ = c.nc.SetDeadline(time.Now().Add(s.opts.IOTimeout))
	}

	if err := fn(c); err != nil {
		// Protocol or cache errors leave the connection reusable; IO
		// errors do not.
		if errors.Is(err, cache.ErrNotFound) || isProtocolError(err) {
			s.release(c)
		} else {
			_ = c.nc.Close()
		}
		return err
	}
	s.release(c)
	return nil
}

func (s *Store) acquire(ctx context.Context) (*conn, error) {
	select {
	case c := <-s.pool:
		return c, nil
	default:
	}

	nc, err := s.dialFn(ctx, s.opts)
	if err != nil {
		return nil, err
	}
	c := &conn{nc: nc, rd: bufio.NewReader(nc)}
	if err := s.handshake(c); err != nil {
		_ = nc.Close()
		return nil, err
	}
	return c, nil
}

func (s *Store) release(c *conn) {
	select {
	case s.pool <- c:
	default:
		_ = c.nc.Close()
	}
}

func (s *Store) handshake(c *conn) error {
	if s.opts.Password != "" {
		if err := writeCommand(c.nc, "AUTH", s.opts.Password); err != nil {
			return err
		}
		if _, err := readReply(c.rd); err != nil {
			return err
		}
	}
	if s.opts.DB > 0 {
		if err := writeCommand(c.nc, "SELECT", strconv.Itoa(s.opts.DB)); err != nil {
			return err
		}
		if _, err := readReply(c.rd); err != nil {
			return err
		}
	}
	return nil
}

func defaultDial(ctx context.Context, opts Options) (net.Conn, error) {
	d := net.Dialer{Timeout: opts.DialTimeout}
	return d.DialContext(ctx, "tcp", opts.Addr)
}

type protocolError string

func (e protocolError) Error() string { return string(e) }

func isProtocolError(err error) bool {
	var pe protocolError
	return errors.As(err, &pe)
}

func writeCommand(w io.Writer, args ...string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "*%d\r\n", len(args))
	for _, arg := range args {
		fmt.Fprintf(&b, "$%d\r\n%s\r\n", len(arg), arg)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// readReply parses one RESP reply: simple string, error, integer, or bulk
// string. Arrays are not needed for GET/SET/DEL.
func readReply(rd *bufio.Reader) (any, error) {
	line, err := readLine(rd)
	if err != nil {
		return nil, err
	}
	if len(line) == 0 {
		return nil, protocolError("redis: empty reply")
	}

	switch line[0] {
	case '+':
		return string(line[1:]), nil
	case '-':
		return nil, protocolError("redis: " + string(line[1:]))
	case ':':
		n, err := strconv.ParseInt(string(line[1:]), 10, 64)
		if err != nil {
			return nil, protocolError("redis: bad integer reply")
		}
		return n, nil
	case '$':
		size, err := strconv.Atoi(string(line[1:]))
		if err != nil {
			return nil, protocolError("redis: bad bulk length")
		}
		if size < 0 {
			return nil, nil
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(rd, buf); err != nil {
			return nil, err
		}
		return buf[:size], nil
	default:
		return nil, protocolError("redis: unsupported reply type " + string(line[0]))
	}
}

func readLine(rd *bufio.Reader) ([]byte, error) {
	line, err := rd.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	if len(line) < 2 || line[len(line)-2] != '\r' {
		return nil, protocolError("redis: malformed line")
	}
	return line[:len(line)-2], nil
}
