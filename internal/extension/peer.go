// ABOUTME: wsPeer adapts a gorilla WebSocket connection to the relay's Peer interface.
// ABOUTME: Writes are serialized and bounded by a write deadline.

package extension

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type wsPeer struct {
	conn         *websocket.Conn
	addr         string
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func newPeer(conn *websocket.Conn, addr string, writeTimeout time.Duration) *wsPeer {
	return &wsPeer{
		conn:         conn,
		addr:         addr,
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
}

func (p *wsPeer) Send(raw []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if p.writeTimeout > 0 {
		_ = p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
	}
	return p.conn.WriteMessage(websocket.TextMessage, raw)
}

func (p *wsPeer) ping() error {
	deadline := time.Now().Add(p.writeTimeout)
	if p.writeTimeout <= 0 {
		deadline = time.Now().Add(10 * time.Second)
	}
	return p.conn.WriteControl(websocket.PingMessage, nil, deadline)
}

func (p *wsPeer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = p.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = p.conn.Close()
	})
	return err
}

func (p *wsPeer) RemoteAddr() string { return p.addr }
