package tools

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

const gpuUnavailable = "GPU detection not available on this OS"

// Toolchains are the optional executables probed for the system report.
var Toolchains = []string{"python3", "dotnet", "go", "docker", "node", "git"}

// GPUInfo is either a list of adapter names or the reason none could be
// listed. Exactly one of the two is set.
type GPUInfo struct {
	Names       []string `json:"names,omitempty"`
	Unavailable string   `json:"unavailable,omitempty"`
}

func (g GPUInfo) String() string {
	if g.Unavailable != "" {
		return g.Unavailable
	}
	return strings.Join(g.Names, ", ")
}

// SystemReport describes the host the assistant runs on.
type SystemReport struct {
	OS              string   `json:"os"`
	Platform        string   `json:"platform"`
	PlatformVersion string   `json:"platform_version"`
	Runtime         string   `json:"runtime"`
	MemoryGB        float64  `json:"memory_gb"`
	CPUCores        int      `json:"cpu_cores"`
	Drives          []string `json:"drives"`
	GPU             GPUInfo  `json:"gpu"`
	Toolchains      []string `json:"toolchains"`
}

// DiscoverSystem collects a SystemReport. Probes that fail leave their
// field at its zero value.
func DiscoverSystem(ctx context.Context) SystemReport {
	report := SystemReport{
		OS:      runtime.GOOS,
		Runtime: runtime.Version(),
	}

	if info, err := host.InfoWithContext(ctx); err == nil {
		report.Platform = info.Platform
		report.PlatformVersion = info.PlatformVersion
	} else {
		slog.Warn("Host info probe failed", "error", err)
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		report.MemoryGB = math.Round(float64(vm.Total)/(1<<30)*10) / 10
	} else {
		slog.Warn("Memory probe failed", "error", err)
	}

	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		report.CPUCores = n
	} else {
		slog.Warn("CPU probe failed", "error", err)
	}

	report.Drives = drives(ctx)
	report.GPU = gpus(ctx)

	for _, name := range Toolchains {
		if _, err := exec.LookPath(name); err == nil {
			report.Toolchains = append(report.Toolchains, name)
		}
	}
	return report
}

// String renders the report as the multi-line text returned to the user.
func (r SystemReport) String() string {
	platform := r.OS
	if r.Platform != "" {
		platform = strings.TrimSpace(r.Platform + " " + r.PlatformVersion)
	}
	toolchains := "None detected"
	if len(r.Toolchains) > 0 {
		toolchains = strings.Join(r.Toolchains, ", ")
	}

	var b strings.Builder
	b.WriteString("System Information:\n")
	fmt.Fprintf(&b, "- OS: %s\n", r.OS)
	fmt.Fprintf(&b, "- Platform: %s\n", platform)
	fmt.Fprintf(&b, "- Runtime: %s\n", r.Runtime)
	fmt.Fprintf(&b, "- Memory: %.1f GB\n", r.MemoryGB)
	fmt.Fprintf(&b, "- CPU Cores: %d\n", r.CPUCores)
	fmt.Fprintf(&b, "- Available Drives: %s\n", strings.Join(r.Drives, ", "))
	fmt.Fprintf(&b, "- GPU: %s\n", r.GPU)
	fmt.Fprintf(&b, "- Installed Toolchains: %s", toolchains)
	return b.String()
}

func drives(ctx context.Context) []string {
	if runtime.GOOS == "windows" {
		var out []string
		for d := 'A'; d <= 'Z'; d++ {
			root := string(d) + `:\`
			if _, err := os.Stat(root); err == nil {
				out = append(out, root)
			}
		}
		return out
	}

	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		slog.Warn("Partition probe failed", "error", err)
		return nil
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, p.Mountpoint)
	}
	return out
}

func gpus(ctx context.Context) GPUInfo {
	if runtime.GOOS != "windows" {
		return GPUInfo{Unavailable: gpuUnavailable}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, "wmic", "path", "win32_VideoController", "get", "name").Output()
	if err != nil {
		return GPUInfo{Unavailable: fmt.Sprintf("GPU query failed: %v", err)}
	}
	return parseGPUNames(string(out))
}

// parseGPUNames drops the header row and blank lines of a wmic listing.
func parseGPUNames(listing string) GPUInfo {
	lines := strings.Split(strings.TrimSpace(listing), "\n")
	var names []string
	for _, line := range lines[1:] {
		if name := strings.TrimSpace(line); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return GPUInfo{Unavailable: "No GPU adapters reported"}
	}
	return GPUInfo{Names: names}
}
