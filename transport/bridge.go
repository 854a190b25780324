package transport

import (
	"net"

	"golang.org/x/net/netutil"
)

// BridgeListener is the pure-Go analogue of the teacher's CH9120/Comboat
// serial-to-network bridge: ch9120's doc comment notes the chip "supports
// only a single socket at a time", a constraint this listener reproduces
// with netutil.LimitListener rather than the chip's own internal socket
// table.
type BridgeListener struct {
	ln net.Listener
}

// NewBridgeListener starts listening on addr (e.g. ":9000"), capped to a
// single concurrent connection.
func NewBridgeListener(addr string) (*BridgeListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &BridgeListener{ln: netutil.LimitListener(ln, 1)}, nil
}

// Accept blocks for the next bridge connection, wrapped as a Link. A
// second connection attempted while one is active waits until the first
// closes, exactly like the chip's single-socket behavior.
func (b *BridgeListener) Accept() (Link, error) {
	conn, err := b.ln.Accept()
	if err != nil {
		return nil, err
	}
	return &bridgeLink{Conn: conn}, nil
}

// Close stops accepting new connections.
func (b *BridgeListener) Close() error { return b.ln.Close() }

// Addr returns the listener's bound address.
func (b *BridgeListener) Addr() net.Addr { return b.ln.Addr() }

type bridgeLink struct {
	net.Conn
}

func (b *bridgeLink) Name() string { return "bridge:" + b.RemoteAddr().String() }
