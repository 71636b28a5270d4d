package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"showseed/internal/downloader"
	"showseed/internal/logging"
	"showseed/internal/testsupport"
)

func startAPIDaemon(t *testing.T, token string) *Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.API.Bind = "127.0.0.1:0"
	cfg.API.Token = token
	_, holder := testsupport.NewFakeEngine(t, cfg)
	d, err := New(cfg, downloader.New(cfg, holder, logging.NewNop()), logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(d.Stop)
	return d
}

func get(t *testing.T, d *Daemon, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "http://"+d.api.Addr()+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAPIStatusAndJobs(t *testing.T) {
	d := startAPIDaemon(t, "")

	resp := get(t, d, "/api/status", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d", resp.StatusCode)
	}
	var status Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running {
		t.Fatal("expected running status")
	}

	resp = get(t, d, "/api/jobs", "")
	var list jobsResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode jobs: %v", err)
	}
	if len(list.Jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(list.Jobs))
	}

	if resp := get(t, d, "/api/jobs/unknown", ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown job code = %d", resp.StatusCode)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	d := startAPIDaemon(t, "secret")

	if resp := get(t, d, "/api/status", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token code = %d", resp.StatusCode)
	}
	if resp := get(t, d, "/api/status", "wrong"); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong token code = %d", resp.StatusCode)
	}
	if resp := get(t, d, "/api/status", "secret"); resp.StatusCode != http.StatusOK {
		t.Fatalf("valid token code = %d", resp.StatusCode)
	}
}
