// Package server implements the server loop (C6): a TCP accept loop
// with one goroutine per connection processing frames strictly in
// arrival order, and a single-goroutine UDP loop — both feeding the
// same dispatcher and middleware chain.
//
// This is a deliberate simplification of the teacher's server.go,
// which spawns a goroutine per *request* (not per connection) so many
// requests on one connection run concurrently. That fan-out requires
// multiplexing replies back to the right caller, which conflicts with
// this runtime's channel contract of at most one send and one receive
// in flight at a time — so requests on a connection are now processed
// one at a time, in arrival order, exactly as
// original_source/.../server/tcp/TCPConnection.java's single-threaded
// read loop does.
package server

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/vladaeloaiei/byteremote/codec"
	"github.com/vladaeloaiei/byteremote/dispatcher"
	"github.com/vladaeloaiei/byteremote/envelope"
	"github.com/vladaeloaiei/byteremote/middleware"
	"github.com/vladaeloaiei/byteremote/registry"
	"github.com/vladaeloaiei/byteremote/rpcerr"
	"github.com/vladaeloaiei/byteremote/tcpchannel"
	"github.com/vladaeloaiei/byteremote/udpchannel"
)

// Server exposes one target's operations over TCP and/or UDP.
type Server struct {
	dispatcher *dispatcher.Dispatcher
	logger     *zap.Logger

	listener net.Listener
	udpConn  *udpchannel.Channel

	wg       sync.WaitGroup
	shutdown atomic.Bool

	connsMu sync.Mutex
	conns   map[*tcpchannel.Channel]struct{}

	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc

	registry      registry.Registry
	registrations []registration
}

// registration records one advertised (serviceName, addr, transport)
// tuple so Shutdown can deregister every socket the server opened, not
// just the last one — a server can serve both TCP and UDP for the same
// target at once.
type registration struct {
	serviceName string
	addr        string
	transport   registry.Transport
}

// New builds a Server dispatching to target. logger defaults to
// zap.NewNop() if nil.
func New(target any, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		dispatcher: dispatcher.New(target),
		logger:     logger,
		conns:      make(map[*tcpchannel.Channel]struct{}),
	}
	return s
}

// Use registers a middleware, applied in the order added.
func (s *Server) Use(mw middleware.Middleware) {
	s.middlewares = append(s.middlewares, mw)
}

func (s *Server) buildHandler() {
	s.handler = middleware.Chain(s.middlewares...)(s.businessHandler)
}

// businessHandler decodes args, invokes, and reports failures through
// the dispatcher's own sentinel errors.
func (s *Server) businessHandler(ctx context.Context, req *envelope.Request) (envelope.Response, error) {
	return s.dispatcher.Dispatch(bytes.NewReader(req.ArgBytes))
}

// ServeTCP listens on address, optionally registering serviceName at
// advertiseAddr in reg, and accepts connections until Shutdown.
func (s *Server) ServeTCP(address, serviceName, advertiseAddr string, reg registry.Registry) error {
	s.buildHandler()

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return rpcerr.Wrap(err, true)
	}
	s.listener = listener

	if reg != nil {
		s.registry = reg
		inst := registry.ServiceInstance{Addr: advertiseAddr, Transport: registry.TransportTCP}
		if err := reg.Register(serviceName, inst, 10); err != nil {
			s.logger.Warn("service registration failed", zap.Error(err))
		}
		s.registrations = append(s.registrations, registration{serviceName, advertiseAddr, registry.TransportTCP})
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return nil
			}
			return rpcerr.Wrap(err, true)
		}
		ch := tcpchannel.New(conn)
		s.trackConn(ch)
		s.wg.Add(1)
		go s.handleConn(ch)
	}
}

func (s *Server) trackConn(ch *tcpchannel.Channel) {
	s.connsMu.Lock()
	s.conns[ch] = struct{}{}
	s.connsMu.Unlock()
}

func (s *Server) untrackConn(ch *tcpchannel.Channel) {
	s.connsMu.Lock()
	delete(s.conns, ch)
	s.connsMu.Unlock()
}

// handleConn processes one TCP connection's frames sequentially: a
// connection owns its socket exclusively and removes itself from the
// live-connection set when its loop exits.
func (s *Server) handleConn(ch *tcpchannel.Channel) {
	defer func() {
		ch.Close()
		s.untrackConn(ch)
		s.wg.Done()
	}()

	for {
		frame, err := ch.Receive()
		if err != nil {
			return
		}

		req := &envelope.Request{ArgBytes: frame}
		resp, err := s.handler(context.Background(), req)
		if err != nil {
			s.logger.Warn("rpc call failed", zap.Error(err))
			continue
		}
		if resp.Void {
			continue
		}

		bc := &codec.BinaryCodec{}
		var buf bytes.Buffer
		if err := bc.Encode(&buf, resp.Value); err != nil {
			s.logger.Warn("failed to encode response", zap.Error(err))
			continue
		}

		if err := ch.Send(buf.Bytes()); err != nil {
			s.logger.Warn("failed to send response", zap.Error(err))
			return
		}
	}
}

// ServeUDP runs the single-goroutine UDP loop on address until
// Shutdown, optionally registering serviceName at advertiseAddr in reg
// as a UDP instance — mirroring ServeTCP's registration so a service
// exposed over both transports is discoverable on both.
func (s *Server) ServeUDP(address, serviceName, advertiseAddr string, reg registry.Registry) error {
	s.buildHandler()

	conn, err := udpchannel.Listen(address)
	if err != nil {
		return err
	}
	s.udpConn = conn

	if reg != nil {
		s.registry = reg
		inst := registry.ServiceInstance{Addr: advertiseAddr, Transport: registry.TransportUDP}
		if err := reg.Register(serviceName, inst, 10); err != nil {
			s.logger.Warn("service registration failed", zap.Error(err))
		}
		s.registrations = append(s.registrations, registration{serviceName, advertiseAddr, registry.TransportUDP})
	}

	for {
		frame, err := conn.Receive()
		if err != nil {
			if s.shutdown.Load() {
				return nil
			}
			if rpcerr.IsCritical(err) {
				s.logger.Error("udp server loop terminated", zap.Error(err))
				return err
			}
			s.logger.Warn("udp receive failed", zap.Error(err))
			continue
		}

		req := &envelope.Request{ArgBytes: frame}
		resp, err := s.handler(context.Background(), req)
		if err != nil {
			s.logger.Warn("rpc call failed", zap.Error(err))
			continue
		}
		if resp.Void {
			continue
		}

		bc := &codec.BinaryCodec{}
		var buf bytes.Buffer
		if err := bc.Encode(&buf, resp.Value); err != nil {
			s.logger.Warn("failed to encode response", zap.Error(err))
			continue
		}

		peer := conn.LastPeer()
		if peer == nil {
			continue
		}
		if err := conn.Send(buf.Bytes(), peer); err != nil {
			s.logger.Warn("failed to send udp response", zap.Error(err))
		}
	}
}

// Shutdown closes the listening socket (unblocking Accept), then
// closes every live connection's socket. It waits up to timeout for
// in-flight handlers to finish.
func (s *Server) Shutdown(timeout time.Duration) error {
	if s.registry != nil {
		for _, r := range s.registrations {
			if err := s.registry.Deregister(r.serviceName, r.addr, r.transport); err != nil {
				s.logger.Warn("service deregistration failed", zap.Error(err))
			}
		}
	}

	s.shutdown.Store(true)

	if s.listener != nil {
		s.listener.Close()
	}
	if s.udpConn != nil {
		s.udpConn.Close()
	}

	s.connsMu.Lock()
	conns := make([]*tcpchannel.Channel, 0, len(s.conns))
	for ch := range s.conns {
		conns = append(conns, ch)
	}
	s.connsMu.Unlock()

	for _, ch := range conns {
		ch.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("server: timeout waiting for connections to close")
	}
}
