package transport

import (
	"net"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func Test_BridgeListenerAcceptsOneLinkAtATime(t *testing.T) {
	c := qt.New(t)
	bl, err := NewBridgeListener("127.0.0.1:0")
	c.Assert(err, qt.Equals, nil)
	defer bl.Close()

	addr := bl.Addr().String()

	accepted := make(chan Link, 1)
	go func() {
		link, err := bl.Accept()
		c.Assert(err, qt.Equals, nil)
		accepted <- link
	}()

	conn1, err := net.Dial("tcp", addr)
	c.Assert(err, qt.Equals, nil)
	defer conn1.Close()

	var link Link
	select {
	case link = <-accepted:
	case <-time.After(time.Second):
		t.Fatal("first connection never accepted")
	}
	defer link.Close()

	// A second dial should succeed at the TCP level (LimitListener queues
	// the accept rather than refusing the connection) but must not be
	// handed back by Accept while the first link is still open.
	conn2, err := net.Dial("tcp", addr)
	c.Assert(err, qt.Equals, nil)
	defer conn2.Close()

	select {
	case <-accept2(bl):
		t.Fatal("second connection must not be accepted while the first is open")
	case <-time.After(50 * time.Millisecond):
	}
}

func accept2(bl *BridgeListener) <-chan Link {
	ch := make(chan Link, 1)
	go func() {
		link, err := bl.Accept()
		if err == nil {
			ch <- link
		}
	}()
	return ch
}
