package datapath

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/angeloszaimis/sdn-lb/internal/openflow"
)

// Datapath is one connected switch as seen by the controller.
type Datapath interface {
	// ID is the switch's datapath identity, zero until the features
	// handshake completes.
	ID() uint64
	// Send writes one message on the control channel. It does not wait
	// for any switch acknowledgment.
	Send(msg openflow.Message) error
}

// Handler receives decoded southbound events.
type Handler interface {
	HandleSwitchFeatures(dp Datapath, features *openflow.FeaturesReply)
	HandlePacketIn(dp Datapath, pkt *openflow.PacketIn)
}

// conn wraps one switch connection. The write side is shared between the
// handshake and the handler, so it is guarded by a mutex; the read side is
// owned by a single goroutine.
type conn struct {
	netConn net.Conn
	logger  *slog.Logger

	writeMu sync.Mutex
	xid     uint32
	id      atomic.Uint64
}

func (c *conn) ID() uint64 {
	return c.id.Load()
}

func (c *conn) Send(msg openflow.Message) error {
	xid := atomic.AddUint32(&c.xid, 1)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := openflow.Encode(c.netConn, xid, msg); err != nil {
		// A broken control channel is not retried; drop the switch.
		c.netConn.Close()
		return err
	}
	return nil
}

// Listener accepts switch connections and runs the per-connection
// handshake and read loop.
type Listener struct {
	addr    string
	handler Handler
	logger  *slog.Logger
}

func NewListener(addr string, handler Handler, logger *slog.Logger) *Listener {
	return &Listener{
		addr:    addr,
		handler: handler,
		logger:  logger,
	}
}

// Run listens for switch connections until the context is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	l.logger.Info("OpenFlow listener started", slog.String("address", l.addr))

	for {
		netConn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info("OpenFlow listener stopped")
				return nil
			}
			return err
		}

		go l.Serve(ctx, netConn)
	}
}

// Serve runs the handshake and read loop for one switch connection.
func (l *Listener) Serve(ctx context.Context, netConn net.Conn) {
	c := &conn{
		netConn: netConn,
		logger:  l.logger,
	}
	defer netConn.Close()

	remote := netConn.RemoteAddr().String()
	l.logger.Info("Switch connected", slog.String("remote", remote))

	if err := c.Send(&openflow.Hello{}); err != nil {
		l.logger.Warn("Handshake failed",
			slog.String("remote", remote),
			slog.Any("err", err))
		return
	}

	for {
		if ctx.Err() != nil {
			return
		}

		_, msg, err := openflow.Decode(netConn)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			l.logger.Warn("Switch disconnected",
				slog.String("remote", remote),
				slog.Any("err", err))
			return
		}

		switch m := msg.(type) {
		case *openflow.Hello:
			if err := c.Send(&openflow.FeaturesRequest{}); err != nil {
				return
			}

		case *openflow.FeaturesReply:
			c.id.Store(m.DatapathID)
			l.handler.HandleSwitchFeatures(c, m)

		case *openflow.PacketIn:
			l.handler.HandlePacketIn(c, m)

		default:
			l.logger.Debug("Ignoring unexpected message",
				slog.String("remote", remote),
				slog.Int("type", int(msg.MsgType())))
		}
	}
}
