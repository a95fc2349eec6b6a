package config

import (
	"testing"
	"time"
)

func TestLoadAppraisalDefaults(t *testing.T) {
	t.Setenv("APPRAISAL_CYCLE_CUTOFF", "")
	t.Setenv("APPRAISAL_ARCHIVE_MONTH", "")
	t.Setenv("APPRAISAL_TIMEZONE", "")

	cfg := Load()
	if cfg.Appraisal.ArchiveMonth != time.March {
		t.Fatalf("expected archive month March, got %v", cfg.Appraisal.ArchiveMonth)
	}
	if cfg.Appraisal.RemindOffsetDays != 7 {
		t.Fatalf("expected remind offset 7, got %d", cfg.Appraisal.RemindOffsetDays)
	}
	want := time.Date(2023, time.April, 1, 0, 0, 0, 0, time.UTC)
	if !cfg.Appraisal.CycleCutoff.Equal(want) {
		t.Fatalf("expected cutoff %v, got %v", want, cfg.Appraisal.CycleCutoff)
	}
}

func TestLoadAppraisalOverrides(t *testing.T) {
	t.Setenv("APPRAISAL_CYCLE_CUTOFF", "2024-01-01")
	t.Setenv("APPRAISAL_ARCHIVE_MONTH", "4")
	t.Setenv("APPRAISAL_ARCHIVE_HOUR", "6")
	t.Setenv("APPRAISAL_SWEEP_INTERVAL", "15m")

	cfg := Load()
	if cfg.Appraisal.CycleCutoff.Year() != 2024 {
		t.Fatalf("expected 2024 cutoff, got %v", cfg.Appraisal.CycleCutoff)
	}
	if cfg.Appraisal.ArchiveMonth != time.April || cfg.Appraisal.ArchiveHour != 6 {
		t.Fatalf("unexpected archive schedule: %+v", cfg.Appraisal)
	}
	if cfg.SweepInterval != 15*time.Minute {
		t.Fatalf("expected 15m sweep interval, got %v", cfg.SweepInterval)
	}
}

func TestValidateRejectsBadMonth(t *testing.T) {
	cfg := Load()
	cfg.DatabaseURL = "postgres://localhost/appraisal"
	cfg.Appraisal.ArchiveMonth = 13
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for month 13")
	}
}

func TestValidateRequiresSMTPHostWhenEmailEnabled(t *testing.T) {
	cfg := Load()
	cfg.DatabaseURL = "postgres://localhost/appraisal"
	cfg.EmailEnabled = true
	cfg.SMTPHost = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error without SMTP host")
	}
}

func TestValidateBoundsSweepInterval(t *testing.T) {
	cfg := Load()
	cfg.DatabaseURL = "postgres://localhost/appraisal"

	cfg.SweepInterval = 2 * time.Hour
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for a 2h sweep interval")
	}
	cfg.SweepInterval = -time.Minute
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for a negative sweep interval")
	}
	for _, ok := range []time.Duration{0, 15 * time.Minute, MaxSweepInterval} {
		cfg.SweepInterval = ok
		if err := cfg.Validate(); err != nil {
			t.Fatalf("expected %v to validate, got %v", ok, err)
		}
	}
}
