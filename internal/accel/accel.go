// Package accel detects CUDA-capable accelerators on the host.
package accel

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/jaypipes/ghw"
)

// nvidiaVendorID is the PCI vendor identifier for NVIDIA devices.
const nvidiaVendorID = "10de"

// Device sources. Only SourceDriver means the CUDA driver answered.
const (
	SourceDriver = "nvidia-smi"
	SourcePCI    = "pci"
)

// Device is one detected accelerator.
type Device struct {
	Name   string
	Source string
}

// DriverVerified reports whether the device was seen through the driver
// rather than bus enumeration alone.
func (d Device) DriverVerified() bool {
	return d.Source == SourceDriver
}

// Prober enumerates accelerators.
type Prober interface {
	Devices(ctx context.Context) ([]Device, error)
}

// SystemProber asks nvidia-smi first, which reflects what the CUDA runtime
// will see, then falls back to PCI enumeration for hosts where the driver
// tools are not on PATH.
type SystemProber struct {
	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) ([]byte, error)
	gpuInfo  func() (*ghw.GPUInfo, error)
	timeout  time.Duration
}

// NewSystemProber constructs a prober backed by the host.
func NewSystemProber() *SystemProber {
	return &SystemProber{
		lookPath: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output() //nolint:gosec
		},
		gpuInfo: func() (*ghw.GPUInfo, error) { return ghw.GPU() },
		timeout: 5 * time.Second,
	}
}

// Devices returns detected accelerators. An empty slice with a nil error means
// the host has none.
func (p *SystemProber) Devices(ctx context.Context) ([]Device, error) {
	var errs []error
	devices, err := p.queryNvidiaSMI(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	if len(devices) > 0 {
		return devices, nil
	}
	devices, err = p.queryPCI()
	if err != nil {
		errs = append(errs, err)
	}
	if len(devices) > 0 {
		return devices, nil
	}
	return nil, errors.Join(errs...)
}

func (p *SystemProber) queryNvidiaSMI(ctx context.Context) ([]Device, error) {
	if _, err := p.lookPath("nvidia-smi"); err != nil {
		return nil, nil
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	out, err := p.run(ctx, "nvidia-smi", "--query-gpu=name", "--format=csv,noheader")
	if err != nil {
		return nil, fmt.Errorf("nvidia-smi: %w", err)
	}
	var devices []Device
	for _, line := range strings.Split(string(out), "\n") {
		if name := strings.TrimSpace(line); name != "" {
			devices = append(devices, Device{Name: name, Source: SourceDriver})
		}
	}
	return devices, nil
}

func (p *SystemProber) queryPCI() ([]Device, error) {
	info, err := p.gpuInfo()
	if err != nil {
		return nil, fmt.Errorf("pci enumeration: %w", err)
	}
	if info == nil {
		return nil, nil
	}
	var devices []Device
	for _, card := range info.GraphicsCards {
		if card == nil || card.DeviceInfo == nil || card.DeviceInfo.Vendor == nil {
			continue
		}
		if !strings.EqualFold(card.DeviceInfo.Vendor.ID, nvidiaVendorID) {
			continue
		}
		name := strings.TrimSpace(card.DeviceInfo.Vendor.Name)
		if card.DeviceInfo.Product != nil {
			name = strings.TrimSpace(name + " " + card.DeviceInfo.Product.Name)
		}
		if name == "" {
			name = fmt.Sprintf("GPU %d", card.Index)
		}
		devices = append(devices, Device{Name: name, Source: SourcePCI})
	}
	return devices, nil
}
