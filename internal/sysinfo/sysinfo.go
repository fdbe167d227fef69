// Package sysinfo samples host vitals for the dashboard. Snapshots are
// cached briefly so a page full of polling clients costs one probe
// round, not one per request.
package sysinfo

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/sensors"
)

// Snapshot is the wire form of one vitals sample. Percentages are
// 0-100, Temperature is Celsius, Uptime is seconds, Timestamp is unix
// milliseconds. Error names the probes whose values were substituted.
type Snapshot struct {
	IPAddress   string  `json:"ipAddress"`
	CPUUsage    float64 `json:"cpuUsage"`
	MemoryUsage float64 `json:"memoryUsage"`
	DiskUsage   float64 `json:"diskUsage"`
	Temperature float64 `json:"temperature"`
	Uptime      int64   `json:"uptime"`
	Timestamp   int64   `json:"timestamp"`
	Error       string  `json:"error,omitempty"`
}

type Collector struct {
	mu       sync.Mutex
	cache    Snapshot
	cacheAt  time.Time
	cacheTTL time.Duration

	startedAt time.Time

	// Probes are fields so tests can substitute failing or fixed ones.
	cpuPercent  func(context.Context) (float64, error)
	memPercent  func(context.Context) (float64, error)
	diskPercent func(context.Context) (float64, error)
	temperature func(context.Context) (float64, error)
	uptime      func(context.Context) (uint64, error)
	localAddr   func() (string, error)
}

func NewCollector(ttl time.Duration) *Collector {
	// Prime the cpu sampler so the first Snapshot gets a delta since
	// now instead of a zero.
	cpu.Percent(0, false)

	return &Collector{
		cacheTTL:    ttl,
		startedAt:   time.Now(),
		cpuPercent:  readCPUPercent,
		memPercent:  readMemPercent,
		diskPercent: readDiskPercent,
		temperature: readTemperature,
		uptime:      host.UptimeWithContext,
		localAddr:   LocalAddr,
	}
}

// Snapshot returns the current vitals, serving the cached sample while
// it is fresh. Probes that fail are replaced with plausible stand-in
// values and named in the Error field; the endpoint never fails just
// because a sensor is missing.
func (c *Collector) Snapshot(ctx context.Context) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.cacheAt.IsZero() && time.Since(c.cacheAt) < c.cacheTTL {
		return c.cache
	}

	snap := Snapshot{Timestamp: time.Now().UnixMilli()}
	var simulated []string

	if v, err := c.cpuPercent(ctx); err == nil {
		snap.CPUUsage = round1(v)
	} else {
		snap.CPUUsage = round1(between(5, 45))
		simulated = append(simulated, "cpu")
	}

	if v, err := c.memPercent(ctx); err == nil {
		snap.MemoryUsage = round1(v)
	} else {
		snap.MemoryUsage = round1(between(30, 75))
		simulated = append(simulated, "memory")
	}

	if v, err := c.diskPercent(ctx); err == nil {
		snap.DiskUsage = round1(v)
	} else {
		snap.DiskUsage = round1(between(20, 70))
		simulated = append(simulated, "disk")
	}

	if v, err := c.temperature(ctx); err == nil {
		snap.Temperature = round1(v)
	} else {
		snap.Temperature = round1(between(35, 60))
		simulated = append(simulated, "temperature")
	}

	if v, err := c.uptime(ctx); err == nil {
		snap.Uptime = int64(v)
	} else {
		snap.Uptime = int64(time.Since(c.startedAt) / time.Second)
		simulated = append(simulated, "uptime")
	}

	if ip, err := c.localAddr(); err == nil {
		snap.IPAddress = ip
	} else {
		snap.IPAddress = "127.0.0.1"
		simulated = append(simulated, "ipAddress")
	}

	if len(simulated) > 0 {
		snap.Error = "simulated: " + strings.Join(simulated, ", ")
	}

	c.cache = snap
	c.cacheAt = time.Now()
	return snap
}

func readCPUPercent(ctx context.Context) (float64, error) {
	// Interval 0 measures since the previous call, which NewCollector
	// primed. A blocking interval would stall every cache miss.
	vals, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}
	if len(vals) == 0 {
		return 0, errors.New("no cpu sample")
	}
	return vals[0], nil
}

func readMemPercent(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

func readDiskPercent(ctx context.Context) (float64, error) {
	du, err := disk.UsageWithContext(ctx, "/")
	if err != nil {
		return 0, err
	}
	return du.UsedPercent, nil
}

// readTemperature reports the hottest sensor. Different boards expose
// different sensor sets, so the max is the only value that travels.
func readTemperature(ctx context.Context) (float64, error) {
	stats, err := sensors.TemperaturesWithContext(ctx)
	if err != nil {
		return 0, err
	}
	maxC := 0.0
	found := false
	for _, st := range stats {
		if st.Temperature > maxC {
			maxC = st.Temperature
			found = true
		}
	}
	if !found {
		return 0, errors.New("no temperature sensors")
	}
	return maxC, nil
}

func between(lo, hi float64) float64 {
	return lo + rand.Float64()*(hi-lo)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
