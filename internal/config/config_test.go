package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Worker.Concurrency != 4 {
		t.Errorf("Worker.Concurrency = %d, want 4", cfg.Worker.Concurrency)
	}
	if cfg.Worker.MaxAttempts != 3 {
		t.Errorf("Worker.MaxAttempts = %d, want 3", cfg.Worker.MaxAttempts)
	}
	if cfg.Queue.Stream == "" || cfg.Queue.Group == "" {
		t.Errorf("queue defaults missing: %+v", cfg.Queue)
	}
	if cfg.Limits.MaxQuestionLength != 4000 {
		t.Errorf("Limits.MaxQuestionLength = %d, want 4000", cfg.Limits.MaxQuestionLength)
	}
	if cfg.FreePlan.MaxQuestionsPerMonth != 10 {
		t.Errorf("FreePlan.MaxQuestionsPerMonth = %d, want 10", cfg.FreePlan.MaxQuestionsPerMonth)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("EDUAI_SERVER_PORT", "9090")
	t.Setenv("EDUAI_WORKER_CONCURRENCY", "8")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want env override 9090", cfg.Server.Port)
	}
	if cfg.Worker.Concurrency != 8 {
		t.Errorf("Worker.Concurrency = %d, want env override 8", cfg.Worker.Concurrency)
	}
}

func TestDurationHelpers(t *testing.T) {
	w := WorkerConfig{BackoffInitialSecs: 2, TimeoutSecs: 60, LockTTLSecs: 600}
	if w.BackoffInitial() != 2*time.Second {
		t.Errorf("BackoffInitial() = %v", w.BackoffInitial())
	}
	if w.Timeout() != time.Minute {
		t.Errorf("Timeout() = %v", w.Timeout())
	}
	if w.LockTTL() != 10*time.Minute {
		t.Errorf("LockTTL() = %v", w.LockTTL())
	}

	q := QueueConfig{BlockSeconds: 5, ClaimIdleSecs: 60}
	if q.Block() != 5*time.Second || q.ClaimIdle() != time.Minute {
		t.Errorf("queue durations = %v, %v", q.Block(), q.ClaimIdle())
	}
}

func TestAddrHelpers(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "eduai", SSLMode: "disable"}
	want := "host=db port=5432 user=u password=p dbname=eduai sslmode=disable"
	if got := db.GetDSN(); got != want {
		t.Errorf("GetDSN() = %q, want %q", got, want)
	}

	srv := ServerConfig{Host: "0.0.0.0", Port: 8080}
	if srv.GetAddr() != "0.0.0.0:8080" {
		t.Errorf("GetAddr() = %q", srv.GetAddr())
	}
}
