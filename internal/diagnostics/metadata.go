package diagnostics

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"

	"github.com/jaypipes/ghw"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"golang.org/x/sync/errgroup"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/logging"
)

// Metadata keys set by the collector.
const (
	KeySessionID    = "session_id"
	KeyGoVersion    = "go.version"
	KeyOS           = "os"
	KeyArch         = "arch"
	KeyPID          = "pid"
	KeyExecutable   = "executable"
	KeyHostname     = "hostname"
	KeyBuildPath    = "build.path"
	KeyBuildVersion = "build.version"
	KeyVCSRevision  = "vcs.revision"
	KeyVCSTime      = "vcs.time"
	KeyVCSModified  = "vcs.modified"
	KeyCPUModel     = "host.cpu_model"
	KeyCPUCores     = "host.cpu_cores"
	KeyCPUThreads   = "host.cpu_threads"
	KeyMemTotalMB   = "host.mem_total_mb"
	KeyLoadAvg1     = "host.load_avg_1"
	KeyDiskFreeMB   = "host.disk_free_mb"
	KeyGPUPrefix    = "host.gpu."
	KeyFDsOpen      = "process.fds_open"
	KeyFDsLimit     = "process.fds_limit"
	envPrefix       = "env."
)

// MetadataOptions controls what CollectMetadata records.
type MetadataOptions struct {
	SessionID string
	// ReportDir is probed for free space.
	ReportDir string
	// Extra pairs supplied by the host application, recorded as-is.
	Extra map[string]string
	// Host enables the gopsutil and ghw probes.
	Host bool
	// Env records the process environment with secrets redacted.
	Env       bool
	Sanitizer *logging.Sanitizer
}

type probe func(ctx context.Context, set func(key, value string))

// CollectMetadata gathers the static pairs attached to every report of an
// install session. Probes run concurrently and are best-effort: a probe that
// fails or does not finish before ctx is done contributes nothing.
func CollectMetadata(ctx context.Context, opts MetadataOptions) core.Metadata {
	var mu sync.Mutex
	values := make(map[string]string, 32)
	set := func(key, value string) {
		if value == "" {
			return
		}
		mu.Lock()
		values[key] = value
		mu.Unlock()
	}

	probes := []probe{processProbe, buildProbe, fdProbe}
	if opts.Host {
		probes = append(probes, cpuProbe, memProbe, loadProbe, gpuProbe, diskProbe(opts.ReportDir))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range probes {
		g.Go(func() error {
			p(gctx, set)
			return nil
		})
	}
	_ = g.Wait()

	mu.Lock()
	defer mu.Unlock()

	if opts.Env {
		for _, kv := range os.Environ() {
			if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
				values[envPrefix+k] = v
			}
		}
	}
	for k, v := range opts.Extra {
		values[k] = v
	}
	if opts.SessionID != "" {
		values[KeySessionID] = opts.SessionID
	}

	sanitizer := opts.Sanitizer
	if sanitizer == nil {
		sanitizer = logging.NewSanitizer()
	}
	return core.NewMetadata(sanitizer.SanitizeStrings(values))
}

func processProbe(_ context.Context, set func(key, value string)) {
	set(KeyGoVersion, runtime.Version())
	set(KeyOS, runtime.GOOS)
	set(KeyArch, runtime.GOARCH)
	set(KeyPID, strconv.Itoa(os.Getpid()))
	if exe, err := os.Executable(); err == nil {
		set(KeyExecutable, exe)
	}
	if host, err := os.Hostname(); err == nil {
		set(KeyHostname, host)
	}
}

func buildProbe(_ context.Context, set func(key, value string)) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	set(KeyBuildPath, info.Main.Path)
	set(KeyBuildVersion, info.Main.Version)
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			set(KeyVCSRevision, s.Value)
		case "vcs.time":
			set(KeyVCSTime, s.Value)
		case "vcs.modified":
			set(KeyVCSModified, s.Value)
		}
	}
}

func fdProbe(_ context.Context, set func(key, value string)) {
	open, limit := CountFDs()
	if open > 0 {
		set(KeyFDsOpen, strconv.Itoa(open))
	}
	if limit > 0 {
		set(KeyFDsLimit, strconv.Itoa(limit))
	}
}

func cpuProbe(ctx context.Context, set func(key, value string)) {
	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		set(KeyCPUModel, strings.TrimSpace(infos[0].ModelName))
	}
	if cores, err := cpu.CountsWithContext(ctx, false); err == nil && cores > 0 {
		set(KeyCPUCores, strconv.Itoa(cores))
	}
	if threads, err := cpu.CountsWithContext(ctx, true); err == nil && threads > 0 {
		set(KeyCPUThreads, strconv.Itoa(threads))
	}
}

func memProbe(ctx context.Context, set func(key, value string)) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return
	}
	set(KeyMemTotalMB, strconv.FormatUint(vm.Total>>20, 10))
}

func loadProbe(ctx context.Context, set func(key, value string)) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return
	}
	set(KeyLoadAvg1, strconv.FormatFloat(avg.Load1, 'f', 2, 64))
}

func diskProbe(dir string) probe {
	return func(ctx context.Context, set func(key, value string)) {
		if dir == "" {
			return
		}
		usage, err := disk.UsageWithContext(ctx, dir)
		if err != nil {
			return
		}
		set(KeyDiskFreeMB, strconv.FormatUint(usage.Free>>20, 10))
	}
}

// gpuProbe asks ghw for graphics cards. ghw takes no context, so the lookup
// runs on its own goroutine and is abandoned when ctx ends.
func gpuProbe(ctx context.Context, set func(key, value string)) {
	done := make(chan []string, 1)
	go func() { done <- gpuNames() }()
	select {
	case names := <-done:
		for i, name := range names {
			set(KeyGPUPrefix+strconv.Itoa(i), name)
		}
	case <-ctx.Done():
	}
}

func gpuNames() []string {
	info, err := ghw.GPU()
	if err != nil || info == nil {
		return nil
	}
	names := make([]string, 0, len(info.GraphicsCards))
	for _, card := range info.GraphicsCards {
		name := ""
		if d := card.DeviceInfo; d != nil {
			var parts []string
			if d.Vendor != nil {
				parts = append(parts, d.Vendor.Name)
			}
			if d.Product != nil {
				parts = append(parts, d.Product.Name)
			}
			name = strings.TrimSpace(strings.Join(parts, " "))
		}
		if name == "" {
			name = fmt.Sprintf("GPU %d", card.Index)
		}
		names = append(names, name)
	}
	return names
}
