package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"
)

func testServer(h http.Handler) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(h, Options{
		Port:            0,
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		ShutdownTimeout: 2 * time.Second,
	}, logger)
}

func TestServer_ServeAndShutdownOrder(t *testing.T) {
	srv := testServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "up")
	}))

	var order []string
	srv.OnShutdown("store", func(ctx context.Context) error {
		order = append(order, "store")
		return nil
	})
	srv.OnShutdown("reconciler", func(ctx context.Context) error {
		order = append(order, "reconciler")
		return nil
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "up" {
		t.Errorf("body = %q, want %q", body, "up")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	if strings.Join(order, ",") != "reconciler,store" {
		t.Errorf("shutdown order = %v, want LIFO", order)
	}
}

func TestServer_ShutdownErrorsJoined(t *testing.T) {
	srv := testServer(http.NotFoundHandler())

	errA := errors.New("a failed")
	errB := errors.New("b failed")
	srv.OnShutdown("a", func(ctx context.Context) error { return errA })
	srv.OnShutdown("b", func(ctx context.Context) error { return errB })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = srv.Serve(ctx, ln)
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("expected both shutdown errors, got %v", err)
	}
	if !strings.Contains(err.Error(), "a: a failed") {
		t.Errorf("expected component name in error, got %v", err)
	}
}

func TestServer_Addr(t *testing.T) {
	srv := New(http.NotFoundHandler(), Options{Port: 3000}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if srv.Addr() != ":3000" {
		t.Errorf("Addr() = %s, want :3000", srv.Addr())
	}
}
