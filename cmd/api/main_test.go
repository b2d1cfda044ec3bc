package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	appconfig "github.com/wolfman30/opd-frontdesk/internal/config"
	"github.com/wolfman30/opd-frontdesk/pkg/logging"
)

func TestSetupMetricsExposesDeskMetrics(t *testing.T) {
	handler, deskMetrics := setupMetrics()
	if handler == nil || deskMetrics == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	deskMetrics.ObserveSubmission("create", "success", 20*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "frontdesk_opd_submissions_total") {
		t.Fatalf("expected submission counter to be exported")
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Fatalf("expected go runtime collector to be exported")
	}
}

func TestRunRejectsUnknownStore(t *testing.T) {
	cfg := &appconfig.Config{StoreBackend: "firebase"}
	if err := run(context.Background(), cfg, logging.New("error")); err == nil {
		t.Fatalf("expected error for unknown store backend")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := &appconfig.Config{
		Port:           "0",
		StoreBackend:   "memory",
		VoiceMode:      "batch",
		RateLimitRPS:   10,
		RateLimitBurst: 10,
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, logging.New("error")) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop after cancel")
	}
}
