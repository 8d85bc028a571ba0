package cheetah

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultResourceDir is the resource root used when neither a library nor a model path is given.
const DefaultResourceDir = "lib"

// ErrUnsupportedDevice is returned when no pre-built library exists for the platform.
var ErrUnsupportedDevice = errors.New("cheetah: unsupported device")

// Platform identifies the host the shared library must be built for.
type Platform struct {
	OS   string
	Arch string
	// CPUPart is the ARM "CPU part" identifier (for example "0xd08"), empty elsewhere.
	CPUPart string
}

var raspberryPiParts = map[string]string{
	"0xd03": "cortex-a53",
	"0xd08": "cortex-a72",
	"0xd0b": "cortex-a76",
}

// Jetson builds exist only for aarch64.
var jetsonParts = map[string]string{
	"0xd07": "cortex-a57-aarch64",
}

// CurrentPlatform describes the running host. On ARM Linux the CPU part is read from
// /proc/cpuinfo.
func CurrentPlatform() (Platform, error) {
	p := Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}
	if p.OS == "linux" && (p.Arch == "arm" || p.Arch == "arm64") {
		info, err := os.ReadFile("/proc/cpuinfo")
		if err != nil {
			return p, fmt.Errorf("read cpu info: %w", err)
		}
		p.CPUPart = CPUPart(info)
	}
	return p, nil
}

// CPUPart returns the value of the first "CPU part" entry in cpuinfo, lowercased.
func CPUPart(cpuinfo []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(cpuinfo))
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "CPU part") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			return ""
		}
		return strings.ToLower(fields[len(fields)-1])
	}
	return ""
}

// LibraryPath returns the path of the pre-built shared library for p under root.
func LibraryPath(root string, p Platform) (string, error) {
	switch p.OS {
	case "darwin":
		switch p.Arch {
		case "amd64":
			return filepath.Join(root, "mac", "x86_64", "libpv_cheetah.dylib"), nil
		case "arm64":
			return filepath.Join(root, "mac", "arm64", "libpv_cheetah.dylib"), nil
		}
	case "windows":
		if p.Arch == "amd64" {
			return filepath.Join(root, "windows", "amd64", "libpv_cheetah.dll"), nil
		}
	case "linux":
		switch p.Arch {
		case "amd64":
			return filepath.Join(root, "linux", "x86_64", "libpv_cheetah.so"), nil
		case "arm", "arm64":
			return armLibraryPath(root, p)
		}
	}
	return "", fmt.Errorf("%w: %s/%s", ErrUnsupportedDevice, p.OS, p.Arch)
}

func armLibraryPath(root string, p Platform) (string, error) {
	suffix := ""
	if p.Arch == "arm64" {
		suffix = "-aarch64"
	}
	part := strings.ToLower(p.CPUPart)

	if machine, ok := raspberryPiParts[part]; ok {
		return filepath.Join(root, "raspberry-pi", machine+suffix, "libpv_cheetah.so"), nil
	}
	if machine, ok := jetsonParts[part]; ok {
		return filepath.Join(root, "jetson", machine, "libpv_cheetah.so"), nil
	}
	if part == "" {
		return "", fmt.Errorf("%w: %s/%s with unknown cpu", ErrUnsupportedDevice, p.OS, p.Arch)
	}
	return "", fmt.Errorf("%w: %s/%s cpu part %s", ErrUnsupportedDevice, p.OS, p.Arch, part)
}

// ModelPath returns the default model parameter file under root.
func ModelPath(root string) string {
	return filepath.Join(root, "common", "cheetah_params.pv")
}
