package session

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/net/nettest"

	"ncat/relay"
	"ncat/transport"
	"ncat/transport/tls"
)

// go test -v ./session -timeout 20s

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func freeEndpoint(t *testing.T) transport.Endpoint {
	t.Helper()
	l, err := nettest.NewLocalListener("tcp4")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	endpoint, err := transport.ParseEndpoint(l.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	return endpoint
}

func idleStdin(t *testing.T) io.Reader {
	r, w := io.Pipe()
	t.Cleanup(func() { w.Close() })
	return r
}

func start(t *testing.T, ctx context.Context, name string, p Params) <-chan error {
	t.Helper()
	mode, err := New(name, p)
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- mode.Run(ctx) }()
	// 等待服务器启动完成
	time.Sleep(200 * time.Millisecond)
	return done
}

func waitErr(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("mode did not return")
	}
	return nil
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// go test -v ./session -run TestConnectSendsGreeting -timeout 5s
func TestConnectSendsGreeting(t *testing.T) {
	l, err := nettest.NewLocalListener("tcp")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		received <- data
	}()

	endpoint, _ := transport.ParseEndpoint(l.Addr().String())
	mode, err := New(ModeConnect, Params{Endpoint: endpoint})
	if err != nil {
		t.Fatal(err)
	}
	if err := mode.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	select {
	case data := <-received:
		if string(data) != "Hello, TCP!" {
			t.Fatalf("peer got %q", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("peer received nothing")
	}
}

func TestConnectSucceedsWithoutReader(t *testing.T) {
	l, err := nettest.NewLocalListener("tcp")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	// the listener never accepts; the kernel backlog completes the handshake

	endpoint, _ := transport.ParseEndpoint(l.Addr().String())
	mode, _ := New(ModeConnect, Params{Endpoint: endpoint})
	if err := mode.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestConnectRefused(t *testing.T) {
	endpoint := freeEndpoint(t)
	mode, _ := New(ModeConnect, Params{Endpoint: endpoint})

	err := mode.Run(context.Background())
	if !errors.Is(err, transport.ErrConnection) {
		t.Fatalf("err = %v, want ErrConnection", err)
	}
	if !strings.Contains(err.Error(), "failed to connect to the address "+endpoint.String()) {
		t.Fatalf("unexpected message: %v", err)
	}
}

// go test -v ./session -run TestServePrintsFirstChunk -timeout 10s
func TestServePrintsFirstChunk(t *testing.T) {
	endpoint := freeEndpoint(t)
	var stdout syncBuffer
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := start(t, ctx, ModeServe, Params{Endpoint: endpoint, Stdio: relay.Stdio{In: idleStdin(t), Out: &stdout}})

	send := func(payload string) {
		conn, err := net.Dial("tcp", endpoint.String())
		if err != nil {
			t.Fatal(err)
		}
		defer conn.Close()
		if payload != "" {
			conn.Write([]byte(payload))
			// the server hangs up after one chunk
			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			conn.Read(make([]byte, 1))
		}
	}

	send("first")
	eventually(t, func() bool { return strings.Contains(stdout.String(), "first") })

	// a client that leaves without sending is logged, not fatal
	send("")
	send("second")
	eventually(t, func() bool { return strings.Contains(stdout.String(), "second") })

	out := stdout.String()
	if strings.Count(out, "accepted\n") != 3 {
		t.Fatalf("expected three connection lines:\n%s", out)
	}
	if !strings.Contains(out, "Received 6 bytes from socket.\nsecond") {
		t.Fatalf("missing byte count before payload:\n%s", out)
	}

	cancel()
	if err := waitErr(t, done); err != nil {
		t.Fatal(err)
	}
}

func TestPrintFirstChunkBounded(t *testing.T) {
	peer, local := net.Pipe()
	var out bytes.Buffer

	go func() {
		peer.Write(bytes.Repeat([]byte{'z'}, 300))
		peer.Close()
	}()

	err := printFirstChunk(&out)(local)
	local.Close()
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(out.String(), "z"); got != serveBufferSize {
		t.Fatalf("printed %d bytes, want %d", got, serveBufferSize)
	}
}

// go test -v ./session -run TestStreamRelay -timeout 10s
func TestStreamRelay(t *testing.T) {
	endpoint := freeEndpoint(t)
	var serverOut, clientOut syncBuffer

	serverDone := start(t, context.Background(), ModeStreamListen, Params{
		Endpoint: endpoint,
		Stdio:    relay.Stdio{In: strings.NewReader("from server"), Out: &serverOut},
	})

	mode, err := New(ModeStreamConnect, Params{
		Endpoint: endpoint,
		Stdio:    relay.Stdio{In: idleStdin(t), Out: &clientOut},
	})
	if err != nil {
		t.Fatal(err)
	}
	// the server's stdin ends, it closes, and the client relay returns
	if err := mode.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := waitErr(t, serverDone); err != nil {
		t.Fatal(err)
	}
	if clientOut.String() != "from server" {
		t.Fatalf("client stdout = %q", clientOut.String())
	}
}

// go test -v ./session -run TestTLSRelay -timeout 10s
func TestTLSRelay(t *testing.T) {
	bundle, err := tls.GenerateSelfSigned("127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	ca, cert, key, err := bundle.WriteFiles(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	endpoint := freeEndpoint(t)
	var serverOut, clientOut syncBuffer

	serverDone := start(t, context.Background(), ModeTLSListen, Params{
		Endpoint: endpoint,
		Stdio:    relay.Stdio{In: strings.NewReader("hello over tls"), Out: &serverOut},
		CertFile: cert,
		KeyFile:  key,
	})

	mode, err := New(ModeTLSConnect, Params{
		Endpoint: endpoint,
		Stdio:    relay.Stdio{In: idleStdin(t), Out: &clientOut},
		CAFile:   ca,
	})
	if err != nil {
		t.Fatal(err)
	}
	// the listener's stdin ends first; the client returns once the peer closes
	if err := mode.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := waitErr(t, serverDone); err != nil {
		t.Fatal(err)
	}
	if clientOut.String() != "hello over tls" {
		t.Fatalf("client stdout = %q", clientOut.String())
	}
	if serverOut.String() != "" {
		t.Fatalf("server stdout = %q, client sent nothing", serverOut.String())
	}
}

func TestTLSConnectUntrusted(t *testing.T) {
	served, _ := tls.GenerateSelfSigned("127.0.0.1")
	other, _ := tls.GenerateSelfSigned("127.0.0.1")
	_, cert, key, err := served.WriteFiles(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	otherCA, _, _, err := other.WriteFiles(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	endpoint := freeEndpoint(t)
	var serverOut syncBuffer
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serverDone := start(t, ctx, ModeTLSListen, Params{
		Endpoint: endpoint,
		Stdio:    relay.Stdio{In: idleStdin(t), Out: &serverOut},
		CertFile: cert,
		KeyFile:  key,
	})

	mode, _ := New(ModeTLSConnect, Params{
		Endpoint: endpoint,
		Stdio:    relay.Stdio{In: strings.NewReader("never sent"), Out: io.Discard},
		CAFile:   otherCA,
	})
	if err := mode.Run(context.Background()); !errors.Is(err, transport.ErrTLS) {
		t.Fatalf("err = %v, want ErrTLS", err)
	}
	if err := waitErr(t, serverDone); !errors.Is(err, transport.ErrTLS) {
		t.Fatalf("server err = %v, want ErrTLS", err)
	}
	if serverOut.String() != "" {
		t.Fatalf("bytes relayed after failed handshake: %q", serverOut.String())
	}
}

func TestTLSListenECKeyFailsBeforeBind(t *testing.T) {
	bundle, _ := tls.GenerateSelfSigned("127.0.0.1")
	dir := t.TempDir()
	_, cert, _, err := bundle.WriteFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	ecKey, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	der, _ := x509.MarshalECPrivateKey(ecKey)
	keyPath := filepath.Join(dir, "ec.pem")
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), 0o600); err != nil {
		t.Fatal(err)
	}

	endpoint := freeEndpoint(t)
	mode, err := New(ModeTLSListen, Params{Endpoint: endpoint, CertFile: cert, KeyFile: keyPath})
	if err != nil {
		t.Fatal(err)
	}
	err = mode.Run(context.Background())
	if !errors.Is(err, transport.ErrTLS) || !strings.Contains(err.Error(), "invalid key") {
		t.Fatalf("err = %v, want invalid key", err)
	}

	// the port was never taken
	l, err := net.Listen("tcp", endpoint.String())
	if err != nil {
		t.Fatalf("port was bound: %v", err)
	}
	l.Close()
}

func TestNew(t *testing.T) {
	for _, name := range Modes {
		p := Params{CertFile: "cert.pem", KeyFile: "key.pem"}
		if _, err := New(name, p); err != nil {
			t.Errorf("New(%s) = %v", name, err)
		}
	}
	if _, err := New("teleport", Params{}); err == nil {
		t.Error("expected unknown mode error")
	}
	if _, err := New(ModeTLSListen, Params{CertFile: "cert.pem"}); err == nil {
		t.Error("expected missing key error")
	}
}

func TestRelays(t *testing.T) {
	want := map[string]bool{
		ModeConnect:       false,
		ModeServe:         false,
		ModeStreamConnect: true,
		ModeStreamListen:  true,
		ModeTLSConnect:    true,
		ModeTLSListen:     true,
		"teleport":        false,
	}
	for name, relays := range want {
		if got := Relays(name); got != relays {
			t.Errorf("Relays(%s) = %v, want %v", name, got, relays)
		}
	}
}
