// Package platform detects host quirks that change how file watching
// behaves.
package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// Platform represents the detected platform
type Platform string

const (
	PlatformMacOS   Platform = "macos"
	PlatformLinux   Platform = "linux"
	PlatformWSL1    Platform = "wsl1"
	PlatformWSL2    Platform = "wsl2"
	PlatformUnknown Platform = "unknown"
)

var (
	detectOnce sync.Once
	detected   Platform
)

// Detect returns the current platform, caching the result.
func Detect() Platform {
	detectOnce.Do(func() {
		detected = detect(runtime.GOOS, os.Getenv("WSL_DISTRO_NAME"), readProcVersion())
	})
	return detected
}

func readProcVersion() string {
	b, err := os.ReadFile("/proc/version")
	if err != nil {
		return ""
	}
	return string(b)
}

// detect classifies a host from its GOOS, $WSL_DISTRO_NAME and
// /proc/version contents.
func detect(goos, wslDistro, procVersion string) Platform {
	switch goos {
	case "darwin":
		return PlatformMacOS
	case "linux":
	default:
		return PlatformUnknown
	}

	isWSL := wslDistro != "" ||
		strings.Contains(procVersion, "microsoft") ||
		strings.Contains(procVersion, "Microsoft")
	if !isWSL {
		return PlatformLinux
	}
	// WSL2 kernels report "microsoft-standard"; WSL1 reports "Microsoft".
	if strings.Contains(procVersion, "microsoft-standard") {
		return PlatformWSL2
	}
	if strings.Contains(procVersion, "Microsoft") {
		return PlatformWSL1
	}
	if _, err := os.Stat("/run/WSL"); err == nil {
		return PlatformWSL2
	}
	return PlatformWSL1
}

// String returns a human-readable platform name
func (p Platform) String() string {
	switch p {
	case PlatformMacOS:
		return "macOS"
	case PlatformLinux:
		return "Linux"
	case PlatformWSL1:
		return "WSL1"
	case PlatformWSL2:
		return "WSL2"
	default:
		return "Unknown"
	}
}

// WatchWarning returns a message when path lives on a filesystem where
// fsnotify events are missing or unreliable, and "" otherwise.
func WatchWarning(path string) string {
	if runtime.GOOS != "linux" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return ""
	}
	mounts, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return ""
	}
	return warningForFS(mountFSType(string(mounts), abs))
}

// mountFSType returns the filesystem type of the longest mount point
// containing path.
func mountFSType(mounts, path string) string {
	var matchedMount, fsType string
	for _, line := range strings.Split(mounts, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		mp := fields[1]
		if !strings.HasPrefix(path, mp) || len(mp) <= len(matchedMount) {
			continue
		}
		if mp != "/" && len(path) > len(mp) && path[len(mp)] != '/' {
			continue
		}
		matchedMount, fsType = mp, fields[2]
	}
	return fsType
}

func warningForFS(fsType string) string {
	switch {
	case fsType == "9p":
		return "store on a 9p mount (WSL2 Windows filesystem): change detection off, press r to refresh"
	case fsType == "nfs" || fsType == "nfs4":
		return "store on NFS: change detection may miss writes, press r to refresh"
	case fsType == "cifs" || fsType == "smbfs":
		return "store on CIFS/SMB: change detection may miss writes, press r to refresh"
	case strings.HasPrefix(fsType, "fuse.sshfs"):
		return "store on SSHFS: change detection off, press r to refresh"
	}
	return ""
}
