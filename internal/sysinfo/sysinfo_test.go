package sysinfo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// fixedCollector returns a collector whose probes all succeed with
// known values, so assertions are exact.
func fixedCollector(ttl time.Duration) *Collector {
	c := NewCollector(ttl)
	c.cpuPercent = func(context.Context) (float64, error) { return 12.34, nil }
	c.memPercent = func(context.Context) (float64, error) { return 56.78, nil }
	c.diskPercent = func(context.Context) (float64, error) { return 40.0, nil }
	c.temperature = func(context.Context) (float64, error) { return 51.5, nil }
	c.uptime = func(context.Context) (uint64, error) { return 3600, nil }
	c.localAddr = func() (string, error) { return "192.168.1.20", nil }
	return c
}

func TestSnapshotValues(t *testing.T) {
	c := fixedCollector(time.Minute)
	snap := c.Snapshot(context.Background())

	if snap.CPUUsage != 12.3 {
		t.Errorf("CPUUsage = %v, want 12.3", snap.CPUUsage)
	}
	if snap.MemoryUsage != 56.8 {
		t.Errorf("MemoryUsage = %v, want 56.8", snap.MemoryUsage)
	}
	if snap.DiskUsage != 40.0 {
		t.Errorf("DiskUsage = %v, want 40.0", snap.DiskUsage)
	}
	if snap.Temperature != 51.5 {
		t.Errorf("Temperature = %v, want 51.5", snap.Temperature)
	}
	if snap.Uptime != 3600 {
		t.Errorf("Uptime = %d, want 3600", snap.Uptime)
	}
	if snap.IPAddress != "192.168.1.20" {
		t.Errorf("IPAddress = %q", snap.IPAddress)
	}
	if snap.Error != "" {
		t.Errorf("Error = %q, want empty", snap.Error)
	}
	if snap.Timestamp == 0 {
		t.Error("Timestamp not set")
	}
}

func TestSnapshotServedFromCacheWithinTTL(t *testing.T) {
	c := fixedCollector(time.Minute)

	first := c.Snapshot(context.Background())

	// Change what the probes report; a cached snapshot must not see it.
	c.cpuPercent = func(context.Context) (float64, error) { return 99.9, nil }

	second := c.Snapshot(context.Background())
	if second != first {
		t.Errorf("snapshot within TTL changed: %+v -> %+v", first, second)
	}
}

func TestSnapshotRefreshesAfterTTL(t *testing.T) {
	c := fixedCollector(10 * time.Millisecond)

	first := c.Snapshot(context.Background())
	c.cpuPercent = func(context.Context) (float64, error) { return 99.9, nil }

	time.Sleep(20 * time.Millisecond)

	second := c.Snapshot(context.Background())
	if second.CPUUsage != 99.9 {
		t.Errorf("CPUUsage after TTL = %v, want 99.9", second.CPUUsage)
	}
	if second.Timestamp < first.Timestamp {
		t.Error("refreshed snapshot has older timestamp")
	}
}

func TestSnapshotSubstitutesFailedProbes(t *testing.T) {
	c := fixedCollector(time.Minute)
	c.cpuPercent = func(context.Context) (float64, error) { return 0, errors.New("no proc") }
	c.temperature = func(context.Context) (float64, error) { return 0, errors.New("no sensors") }

	snap := c.Snapshot(context.Background())

	if snap.CPUUsage < 5 || snap.CPUUsage > 45 {
		t.Errorf("substituted CPUUsage = %v, want within [5,45]", snap.CPUUsage)
	}
	if snap.Temperature < 35 || snap.Temperature > 60 {
		t.Errorf("substituted Temperature = %v, want within [35,60]", snap.Temperature)
	}
	if !strings.Contains(snap.Error, "cpu") || !strings.Contains(snap.Error, "temperature") {
		t.Errorf("Error = %q, want it to name cpu and temperature", snap.Error)
	}
	if strings.Contains(snap.Error, "memory") {
		t.Errorf("Error = %q names a probe that succeeded", snap.Error)
	}
	// Values that probed fine still travel.
	if snap.MemoryUsage != 56.8 {
		t.Errorf("MemoryUsage = %v, want 56.8", snap.MemoryUsage)
	}
}

func TestSnapshotFallsBackToLoopback(t *testing.T) {
	c := fixedCollector(time.Minute)
	c.localAddr = func() (string, error) { return "", errors.New("no interfaces") }

	snap := c.Snapshot(context.Background())
	if snap.IPAddress != "127.0.0.1" {
		t.Errorf("IPAddress = %q, want 127.0.0.1", snap.IPAddress)
	}
	if !strings.Contains(snap.Error, "ipAddress") {
		t.Errorf("Error = %q, want it to name ipAddress", snap.Error)
	}
}
