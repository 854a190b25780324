package frame

import (
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
)

func Test_DecoderExtractsBracketedPayload(t *testing.T) {
	c := qt.New(t)
	d := NewDecoder(strings.NewReader(""))
	for _, b := range []byte("<M:100,50>") {
		d.FeedByte(b)
	}
	select {
	case got := <-d.Frames():
		c.Assert(string(got), qt.Equals, "M:100,50")
	default:
		t.Fatal("expected a frame")
	}
}

func Test_DecoderIgnoresCRLFInsideFrame(t *testing.T) {
	c := qt.New(t)
	d := NewDecoder(strings.NewReader(""))
	for _, b := range []byte("<M:1\r\n,2>") {
		d.FeedByte(b)
	}
	got := <-d.Frames()
	c.Assert(string(got), qt.Equals, "M:1,2")
}

func Test_DecoderDropsBytesOutsideBrackets(t *testing.T) {
	c := qt.New(t)
	d := NewDecoder(strings.NewReader(""))
	for _, b := range []byte("garbage<S>more garbage") {
		d.FeedByte(b)
	}
	got := <-d.Frames()
	c.Assert(string(got), qt.Equals, "S")
}

func Test_DecoderOverflowDropsInProgressFrameAndResyncs(t *testing.T) {
	c := qt.New(t)
	d := NewDecoder(strings.NewReader(""))
	d.FeedByte('<')
	for i := 0; i < MaxPayload+5; i++ {
		d.FeedByte('x')
	}
	select {
	case <-d.Frames():
		t.Fatal("overflowed frame must not be published")
	default:
	}
	for _, b := range []byte("<S>") {
		d.FeedByte(b)
	}
	got := <-d.Frames()
	c.Assert(string(got), qt.Equals, "S")
}

func Test_DecoderDropsUnconsumedFrameRatherThanBlocking(t *testing.T) {
	c := qt.New(t)
	d := NewDecoder(strings.NewReader(""))
	for _, b := range []byte("<A>") {
		d.FeedByte(b)
	}
	for _, b := range []byte("<B>") {
		d.FeedByte(b)
	}
	got := <-d.Frames()
	c.Assert(string(got), qt.Equals, "A")
	select {
	case extra := <-d.Frames():
		t.Fatalf("expected no second frame, got %q", extra)
	default:
	}
}

type recordingWriter struct {
	lines []string
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	w.lines = append(w.lines, string(p))
	return len(p), nil
}

func Test_EncoderAppendsCRLF(t *testing.T) {
	c := qt.New(t)
	w := &recordingWriter{}
	e := NewEncoder(w)
	c.Assert(e.Send("OK:M"), qt.Equals, nil)
	c.Assert(w.lines, qt.HasLen, 1)
	c.Assert(w.lines[0], qt.Equals, "OK:M\r\n")
}
