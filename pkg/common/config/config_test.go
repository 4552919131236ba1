package config

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATA_DIR", "/data")
	cfg := Load()

	if cfg.ServerPort != "8090" {
		t.Fatalf("expected port 8090, got %s", cfg.ServerPort)
	}
	if cfg.NotesCSV != filepath.Join("/data", "Asthma_Symp.csv") {
		t.Fatalf("unexpected notes path %s", cfg.NotesCSV)
	}
	if cfg.LabsCSV != filepath.Join("/data", "symptom_patient_merged.csv") {
		t.Fatalf("unexpected labs path %s", cfg.LabsCSV)
	}
	if !cfg.LoadEagerly || cfg.RunLogEnabled {
		t.Fatalf("unexpected flags %+v", cfg)
	}
	if cfg.TimelineEventsTopic != "" {
		t.Fatalf("expected events disabled by default, got %s", cfg.TimelineEventsTopic)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MEDS_CSV", "/elsewhere/meds.csv")
	t.Setenv("LOAD_EAGERLY", "false")
	t.Setenv("RUN_LOG_ENABLED", "yes-please")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("SHUTDOWN_TIMEOUT", "5s")
	t.Setenv("RATE_LIMIT_RPS", "20")
	t.Setenv("POSTGRES_MAX_CONNS", "many")

	cfg := Load()
	if cfg.MedsCSV != "/elsewhere/meds.csv" {
		t.Fatalf("unexpected meds path %s", cfg.MedsCSV)
	}
	if cfg.LoadEagerly {
		t.Fatal("expected lazy loading")
	}
	if cfg.RunLogEnabled {
		t.Fatal("expected invalid bool to fall back to default")
	}
	if !reflect.DeepEqual(cfg.KafkaBrokers, []string{"k1:9092", "k2:9092"}) {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Fatalf("unexpected shutdown timeout %v", cfg.ShutdownTimeout)
	}
	if cfg.RateLimitRPS != 20 || cfg.PostgresMaxConns != 4 {
		t.Fatalf("unexpected ints %d %d", cfg.RateLimitRPS, cfg.PostgresMaxConns)
	}
}
