package api

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestStatusWriter_Hijack(t *testing.T) {
	hijacked := make(chan int, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		var hw http.ResponseWriter = rec
		h, ok := hw.(http.Hijacker)
		if !ok {
			t.Error("statusWriter does not implement http.Hijacker")
			return
		}
		conn, buf, err := h.Hijack()
		if err != nil {
			t.Errorf("Hijack() error: %v", err)
			return
		}
		defer conn.Close()
		//nolint:errcheck // client reads the reply
		buf.WriteString("HTTP/1.1 204 No Content\r\nConnection: close\r\n\r\n")
		buf.Flush() //nolint:errcheck // see above
		hijacked <- rec.status
	}))
	defer ts.Close()

	conn, err := net.Dial("tcp", strings.TrimPrefix(ts.URL, "http://"))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204 written on the hijacked conn", resp.StatusCode)
	}
	select {
	case got := <-hijacked:
		if got != http.StatusSwitchingProtocols {
			t.Errorf("recorded status = %d, want 101", got)
		}
	case <-time.After(time.Second):
		t.Error("handler never hijacked the connection")
	}
}

func TestStatusWriter_HijackUnsupported(t *testing.T) {
	rec := &statusWriter{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	if _, _, err := rec.Hijack(); !errors.Is(err, http.ErrNotSupported) {
		t.Errorf("Hijack() error = %v, want http.ErrNotSupported", err)
	}
	if rec.status != http.StatusOK {
		t.Errorf("status = %d, want unchanged 200", rec.status)
	}
}

func TestStatusWriter_Unwrap(t *testing.T) {
	inner := httptest.NewRecorder()
	rec := &statusWriter{ResponseWriter: inner}
	if rec.Unwrap() != inner {
		t.Error("Unwrap() did not return the wrapped writer")
	}
}
