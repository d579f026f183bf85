package chunkserver

import (
	"net"
	"testing"
	"time"
)

func TestNetworkWorkerThreadServeAndPing(t *testing.T) {
	store := newTestStore(t)
	jobs := NewBackgroundJobPool(2, 8)
	t.Cleanup(func() { jobs.Stop() })
	bufPool := NewBufferPool(4)

	w := NewNetworkWorkerThread(0, store, jobs, bufPool)

	clientSide, serverSide := net.Pipe()
	if err := w.Serve(serverSide); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { clientSide.Close() })

	ping := encodeHeader(AnToAnPing, 0)
	if _, err := clientSide.Write(ping); err != nil {
		t.Fatal(err)
	}

	reply := make([]byte, PacketHeaderSize)
	clientSide.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := clientSide.Read(reply); err != nil {
		t.Fatalf("expected ping reply, got err: %v", err)
	}
	hdr, err := decodeHeader(reply)
	if err != nil || hdr.Type != AnToAnPingReply {
		t.Fatalf("expected PingReply header, got %+v err=%v", hdr, err)
	}
}

func TestNetworkWorkerThreadConnectionCount(t *testing.T) {
	store := newTestStore(t)
	jobs := NewBackgroundJobPool(1, 4)
	t.Cleanup(func() { jobs.Stop() })
	bufPool := NewBufferPool(4)

	w := NewNetworkWorkerThread(0, store, jobs, bufPool)

	clientSide, serverSide := net.Pipe()
	t.Cleanup(func() { clientSide.Close() })
	if err := w.Serve(serverSide); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	for w.ConnectionCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if w.ConnectionCount() != 1 {
		t.Fatalf("expected 1 tracked connection, got %d", w.ConnectionCount())
	}
}

func TestConnectRetryBackoffFormulaLaterTerms(t *testing.T) {
	// n=4,5 should double the n=2,3 values (same parity, next doubling).
	if got, want := connectRetryBackoff(4), 800000*time.Microsecond; got != want {
		t.Errorf("connectRetryBackoff(4) = %v, want %v", got, want)
	}
	if got, want := connectRetryBackoff(5), 1200000*time.Microsecond; got != want {
		t.Errorf("connectRetryBackoff(5) = %v, want %v", got, want)
	}
}
