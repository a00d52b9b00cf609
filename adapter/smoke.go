package adapter

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/iaconlabs/warpcore/router"
	"github.com/iaconlabs/warpcore/server"
)

// RunServerSmoke serves a router built by factory over a real TCP listener
// and checks a parametric route end to end, graceful shutdown included.
func RunServerSmoke(t *testing.T, factory func() router.Router) {
	t.Helper()

	adp := factory()
	adp.GET("/api/v1/users/:id.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","id":"` + adp.Param(r, "id") + `"}`))
	})

	srv := server.New(server.Config{
		Addr:         "127.0.0.1:0",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}, adp)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start(context.Background())
	}()

	addr := srv.Addr()
	if addr == "" {
		t.Fatal("server never became ready")
	}

	client := &http.Client{Timeout: 2 * time.Second, Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + addr + "/api/v1/users/admin.json")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	// The parameter captures the extension.
	if expected := `{"status":"ok","id":"admin.json"}`; string(body) != expected {
		t.Errorf("expected body %s, got %s", expected, string(body))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Errorf("shutdown failed: %v", err)
	}

	select {
	case err := <-srvErr:
		if err != nil {
			t.Errorf("server stopped with an error: %v", err)
		}
	case <-time.After(time.Second):
		t.Error("server took too long to stop")
	}
}
