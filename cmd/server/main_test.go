package main

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/gitaditya567/itskillhub/internal/config"
)

func TestRunClosesBackendsOnStartupFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.FileConfig{
		Port:              "0",
		StorageBackend:    config.StorageFile,
		DataDir:           t.TempDir(),
		SessionTTL:        "1h",
		RazorpayKeyID:     "rzp_test_key",
		RazorpayKeySecret: "secret",
		EventsBackend:     config.EventsNone,
		RedisAddr:         mr.Addr(),
		TrustedProxyCIDRs: []string{"not-an-ip"},
	}

	err := run(context.Background(), cfg, slog.Default())
	if err == nil || !strings.Contains(err.Error(), "trusted proxies") {
		t.Fatalf("err = %v, want trusted proxies error", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for mr.CurrentConnectionCount() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("redis connections still open: %d", mr.CurrentConnectionCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
