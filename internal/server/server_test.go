package server

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/accioai/accio/internal/config"
)

func TestServerRunAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	cfg := config.ServerConfig{Port: "0", ReadTimeout: time.Second, WriteTimeout: time.Second, ShutdownTimeout: time.Second}
	srv := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), handler)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Errorf("body = %q", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestNewUsesPort(t *testing.T) {
	srv := New(config.ServerConfig{Port: "9090"}, slog.New(slog.NewTextHandler(io.Discard, nil)), http.NotFoundHandler())
	if srv.Addr() != ":9090" {
		t.Errorf("Addr() = %q", srv.Addr())
	}
}
