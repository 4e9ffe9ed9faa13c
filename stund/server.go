// Package stund is a minimal STUN binding responder.
//
// A Server owns one UDP socket and answers Binding requests with the
// transport address it observed for the client, one exchange at a time.
package stund

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/aethiopicuschan/stund/dgram"
	"github.com/aethiopicuschan/stund/stun"
)

// Config configures a Server.
type Config struct {
	Family dgram.Family

	// Port is the UDP port to bind. Zero picks an ephemeral port.
	Port int

	// Software, if non-empty, is sent as a SOFTWARE attribute in every
	// response.
	Software string

	// Fingerprint appends FINGERPRINT to responses to RFC 5389 requests.
	Fingerprint bool

	Compatibility stun.Compatibility

	// MaxMessageSize bounds accepted datagrams and responses. Zero means
	// stun.MaxMessageSize. Listen rejects sizes below stun.MinMessageSize,
	// plus room for SOFTWARE when it is set.
	MaxMessageSize int

	// KnownAttributes are comprehension-required attribute types that
	// are accepted in requests. Others get a 420 response.
	KnownAttributes []uint16

	AllowStdDescriptors bool
	DisableErrorQueue   bool

	// Logger defaults to the logrus standard logger.
	Logger logrus.FieldLogger
}

// Server answers STUN Binding requests on a UDP socket.
type Server struct {
	sock       *dgram.Socket
	conn       *dgram.Conn
	dispatcher *Dispatcher
	log        logrus.FieldLogger

	// mu orders wg.Add in ServeContext against the close in shutdown.
	mu        sync.Mutex
	closed    bool
	onceClose sync.Once
	closeCh   chan struct{}
	wg        sync.WaitGroup
}

// Listen opens the socket described by cfg and prepares the server.
//
// Call Serve or ServeContext to start answering requests.
func Listen(ctx context.Context, cfg Config) (*Server, error) {
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	size := cfg.MaxMessageSize
	if size <= 0 {
		size = stun.MaxMessageSize
	}
	if floor := minMessageSize(cfg.Software); size < floor {
		return nil, fmt.Errorf("%w: max message size %d is below %d", ErrInvalidConfig, size, floor)
	}

	sock, err := dgram.Open(ctx, dgram.Options{
		Family:              cfg.Family,
		Kind:                dgram.KindDatagram,
		Port:                cfg.Port,
		AllowStdDescriptors: cfg.AllowStdDescriptors,
		DisableErrorQueue:   cfg.DisableErrorQueue,
	})
	if err != nil {
		return nil, err
	}
	conn, err := dgram.NewConn(sock, dgram.ConnOptions{MaxMessageSize: size, Logger: log})
	if err != nil {
		sock.Close()
		return nil, err
	}

	var usage stun.Usage
	if cfg.Software != "" {
		usage |= stun.UsageAddSoftware
	}
	if cfg.Fingerprint {
		usage |= stun.UsageUseFingerprint
	}
	agent := stun.NewAgent(stun.AgentConfig{
		KnownAttributes: cfg.KnownAttributes,
		Compatibility:   cfg.Compatibility,
		Usage:           usage,
		Software:        cfg.Software,
	})

	s := &Server{
		sock:       sock,
		conn:       conn,
		dispatcher: NewDispatcher(conn, agent, log),
		log:        log,
		closeCh:    make(chan struct{}),
	}

	fields := logrus.Fields{
		"function":      "Listen",
		"address":       sock.LocalAddr().String(),
		"family":        sock.Family.String(),
		"compatibility": cfg.Compatibility.String(),
		"max_size":      size,
		"error_queue":   conn.ErrorQueueAvailable(),
	}
	if !conn.ErrorQueueAvailable() {
		log.WithFields(fields).Warn("Deferred error queue unavailable, sends are single attempts")
	}
	log.WithFields(fields).Info("Listening")
	return s, nil
}

// responseOverhead covers twice the fixed part of the largest response:
// header, ERROR-CODE, the UNKNOWN-ATTRIBUTES header and FINGERPRINT.
const responseOverhead = 128

// minMessageSize is the smallest buffer that holds every response to a
// request that fits it. A 420 response lists one type for every four
// request bytes, so it grows by half the buffer while SOFTWARE is fixed.
func minMessageSize(software string) int {
	sw := 0
	if software != "" {
		sw = 4 + (len(software)+3)&^3
	}
	return max(stun.MinMessageSize, responseOverhead+2*sw)
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr { return s.conn.LocalAddr() }

// Port returns the bound port.
func (s *Server) Port() int { return s.sock.Port }

// Close stops the server and closes the socket, which unblocks a pending
// receive. Close is safe to call multiple times.
func (s *Server) Close() error {
	err := s.shutdown()
	s.wg.Wait()
	return err
}

// shutdown marks the server closed and closes the socket once. No serve
// loop can register after it returns.
func (s *Server) shutdown() error {
	var err error
	s.onceClose.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.closeCh)
		s.mu.Unlock()
		err = s.conn.Close()
	})
	return err
}

// Serve answers requests until Close is called.
func (s *Server) Serve() error {
	return s.ServeContext(context.Background())
}

// ServeContext answers requests until ctx is done or Close is called, and
// then returns nil. Failed exchanges are logged and never stop the loop.
func (s *Server) ServeContext(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	stop := context.AfterFunc(ctx, func() { _ = s.shutdown() })
	defer stop()

	for {
		err := s.dispatcher.Process()
		if err == nil {
			continue
		}

		select {
		case <-s.closeCh:
			return nil
		default:
		}
		if errors.Is(err, net.ErrClosed) {
			return err
		}
		s.logFailure(err)
	}
}

// logFailure reports a failed exchange. Drops are routine and logged at
// debug level; failures to answer a valid request are warnings.
func (s *Server) logFailure(err error) {
	entry := s.log.WithFields(logrus.Fields{
		"function": "ServeContext",
		"error":    err,
	})
	switch {
	case errors.Is(err, ErrDropped),
		errors.Is(err, dgram.ErrOversized),
		errors.Is(err, dgram.ErrReceive):
		entry.Debug("Exchange dropped")
	default:
		entry.Warn("Exchange failed")
	}
}
