package chunkserver

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/NebulousLabs/errors"
	"github.com/NebulousLabs/go-upnp"
	"github.com/NebulousLabs/threadgroup"
)

// tcpAcceptDeadline bounds how long Accept blocks between checking the
// acceptor's StopChan, the same polling shape gateway.go uses around its
// permanentListen loop.
const tcpAcceptDeadline = time.Second

// ConnectionAcceptor listens on one TCP address and hands every accepted
// socket to whichever worker slot currently owns the fewest connections
// (§4.8's "accepted sockets are sharded across a fixed pool of workers").
type ConnectionAcceptor struct {
	listener net.Listener
	workers  []*NetworkWorkerThread

	threads threadgroup.ThreadGroup
}

// NewConnectionAcceptor binds addr and hands accepted connections to the
// given, already constructed network worker slots.
func NewConnectionAcceptor(addr string, workers []*NetworkWorkerThread) (*ConnectionAcceptor, error) {
	if len(workers) == 0 {
		return nil, errors.New("at least one network worker is required")
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	a := &ConnectionAcceptor{listener: l, workers: workers}
	a.threads.OnStop(func() {
		a.listener.Close()
	})
	return a, nil
}

// Addr returns the bound listener address, useful when addr was ":0".
func (a *ConnectionAcceptor) Addr() net.Addr {
	return a.listener.Addr()
}

// Serve runs the accept loop until Stop is called. It is meant to be run on
// its own goroutine by the caller, mirroring gateway.go's permanentListen.
func (a *ConnectionAcceptor) Serve() error {
	if err := a.threads.Add(); err != nil {
		return err
	}
	defer a.threads.Done()

	for {
		if tl, ok := a.listener.(*net.TCPListener); ok {
			tl.SetDeadline(time.Now().Add(tcpAcceptDeadline))
		}
		conn, err := a.listener.Accept()
		if err != nil {
			select {
			case <-a.threads.StopChan():
				return nil
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return err
		}

		if tc, ok := conn.(*net.TCPConn); ok {
			tc.SetNoDelay(true)
		}

		w := a.leastLoadedWorker()
		if err := w.Serve(conn); err != nil {
			conn.Close()
		}
	}
}

// leastLoadedWorker picks the worker slot that currently owns the fewest
// connections (the first such slot on a tie). It is not a fixed
// round-robin rotation: the choice depends on live connection counts.
func (a *ConnectionAcceptor) leastLoadedWorker() *NetworkWorkerThread {
	best := a.workers[0]
	bestCount := best.ConnectionCount()
	for _, w := range a.workers[1:] {
		if c := w.ConnectionCount(); c < bestCount {
			best, bestCount = w, c
		}
	}
	return best
}

// ForwardPort asks a UPnP gateway discovered on the local network to
// forward the bound listener's port, returning any discovery or forwarding
// error to the caller. The sfschunkserver entrypoint does not call it, so
// the daemon starts without port forwarding.
func (a *ConnectionAcceptor) ForwardPort(ctx context.Context) error {
	_, portStr, err := net.SplitHostPort(a.listener.Addr().String())
	if err != nil {
		return err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return err
	}

	d, err := upnp.DiscoverCtx(ctx)
	if err != nil {
		return err
	}
	return d.Forward(uint16(port), "SaunaFS chunkserver")
}

// Stop closes the listener and waits for Serve to return.
func (a *ConnectionAcceptor) Stop() error {
	return a.threads.Stop()
}
