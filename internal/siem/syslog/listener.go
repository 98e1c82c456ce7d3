package syslog

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vigilo/siem/internal/siem/logger"
)

// Handler receives one parsed envelope per datagram. Handlers run on their
// own goroutine so a slow handler never stalls datagram reception.
type Handler func(env *Envelope)

// Listener is a UDP syslog receiver. Reception is fire-and-continue: every
// datagram is decomposed into an Envelope and handed to the handler on a
// fresh goroutine; one malformed datagram never affects the next.
type Listener struct {
	host    string
	port    int
	handler Handler
	log     *zap.SugaredLogger

	mu       sync.Mutex
	conn     net.PacketConn
	done     chan struct{}
	handlers sync.WaitGroup
}

func NewListener(host string, port int, handler Handler) *Listener {
	return &Listener{
		host:    host,
		port:    port,
		handler: handler,
		log:     logger.L(),
	}
}

// Start binds the UDP socket and begins the read loop. A bind failure
// (address in use, permission denied) is a startup error and is returned,
// not retried.
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return nil
	}
	addr := net.JoinHostPort(l.host, strconv.Itoa(l.port))
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return fmt.Errorf("bind syslog listener at %s: %w", addr, err)
	}
	l.conn = conn
	l.done = make(chan struct{})
	go l.serve(conn)
	l.log.Infow("syslog listener started", "addr", conn.LocalAddr().String())
	return nil
}

// Addr returns the bound address, or nil when the listener is not running.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Stop releases the socket and waits for in-flight handlers to finish. It
// is idempotent and safe to call even if Start never succeeded.
func (l *Listener) Stop() {
	l.mu.Lock()
	conn, done := l.conn, l.done
	l.conn = nil
	l.mu.Unlock()
	if conn == nil {
		return
	}
	_ = conn.Close()
	<-done
	l.handlers.Wait()
	l.log.Infow("syslog listener stopped")
}

func (l *Listener) serve(conn net.PacketConn) {
	defer close(l.done)
	buf := make([]byte, 64*1024)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if strings.Contains(err.Error(), "use of closed network connection") {
				return
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			l.log.Errorw("syslog read", "err", err)
			continue
		}

		// Invalid byte sequences are dropped, not fatal.
		raw := strings.TrimSpace(strings.ToValidUTF8(string(buf[:n]), ""))
		if raw == "" {
			continue
		}
		srcIP := ""
		if ua, ok := addr.(*net.UDPAddr); ok {
			srcIP = ua.IP.String()
		}
		env := ParseEnvelope(raw, srcIP, time.Now())

		l.handlers.Add(1)
		go func() {
			defer l.handlers.Done()
			defer func() {
				if r := recover(); r != nil {
					l.log.Errorw("syslog handler panic", "source_ip", env.SourceIP, "panic", r)
				}
			}()
			l.handler(env)
		}()
	}
}
