// Package transport provides the server's listeners. TCP connections are
// plain net.Conns; WebSocket connections (browser and WebXR clients) are
// adapted to net.Conn so the same framed protocol flows over both.
package transport

import (
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ErrListenerClosed is returned by Accept after Close.
var ErrListenerClosed = errors.New("transport: listener closed")

// Listen opens a plain TCP listener.
func Listen(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// wsListener presents upgraded WebSocket connections through the
// net.Listener interface so the accept loop stays transport-agnostic.
type wsListener struct {
	ln    net.Listener
	srv   *http.Server
	conns chan net.Conn

	done      chan struct{}
	closeOnce sync.Once
}

// ListenWS serves an HTTP upgrade endpoint at path on addr. readLimit
// bounds a single incoming WebSocket message; the frame decoder applies
// its own limit on top.
func ListenWS(addr, path string, readLimit int64) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	l := &wsListener{
		ln:    ln,
		conns: make(chan net.Conn),
		done:  make(chan struct{}),
	}

	upgrader := websocket.Upgrader{
		// Pose sync carries no cookies or credentials; any origin may join.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Debug().Err(err).Str("addr", r.RemoteAddr).Msg("WebSocket upgrade failed")
			return
		}
		ws.SetReadLimit(readLimit)
		select {
		case l.conns <- newWSConn(ws):
		case <-l.done:
			_ = ws.Close()
		}
	})

	l.srv = &http.Server{Handler: mux}
	go func() {
		if err := l.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Err(err).Msg("WebSocket listener failed")
		}
	}()
	return l, nil
}

func (l *wsListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.done:
		return nil, ErrListenerClosed
	}
}

func (l *wsListener) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
		_ = l.srv.Close()
	})
	return nil
}

func (l *wsListener) Addr() net.Addr {
	return l.ln.Addr()
}
