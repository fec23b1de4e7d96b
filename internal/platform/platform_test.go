package platform

import (
	"runtime"
	"testing"
)

func TestDetectIsCached(t *testing.T) {
	p := Detect()
	if p == "" {
		t.Fatal("Detect() returned empty platform")
	}
	if runtime.GOOS == "darwin" && p != PlatformMacOS {
		t.Errorf("Expected PlatformMacOS on darwin, got %s", p)
	}
	if p2 := Detect(); p != p2 {
		t.Errorf("Detect() not cached: got %s then %s", p, p2)
	}
}

func TestDetectClassifies(t *testing.T) {
	tests := []struct {
		name        string
		goos        string
		distro      string
		procVersion string
		want        Platform
	}{
		{"mac", "darwin", "", "", PlatformMacOS},
		{"bsd", "freebsd", "", "", PlatformUnknown},
		{"linux", "linux", "", "Linux version 6.8.0-45-generic", PlatformLinux},
		{"wsl2", "linux", "Ubuntu", "Linux version 5.15.153.1-microsoft-standard-WSL2", PlatformWSL2},
		{"wsl2 without env", "linux", "", "Linux version 5.15.0-microsoft-standard", PlatformWSL2},
		{"wsl1", "linux", "", "Linux version 4.4.0-19041-Microsoft", PlatformWSL1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detect(tt.goos, tt.distro, tt.procVersion); got != tt.want {
				t.Errorf("detect() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPlatformString(t *testing.T) {
	tests := []struct {
		platform Platform
		expected string
	}{
		{PlatformMacOS, "macOS"},
		{PlatformLinux, "Linux"},
		{PlatformWSL1, "WSL1"},
		{PlatformWSL2, "WSL2"},
		{PlatformUnknown, "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.platform.String(); got != tt.expected {
			t.Errorf("Platform(%s).String() = %s, want %s", tt.platform, got, tt.expected)
		}
	}
}

const sampleMounts = `sysfs /sys sysfs rw 0 0
/dev/nvme0n1p2 / ext4 rw,relatime 0 0
C:\134 /mnt/c 9p rw,noatime 0 0
server:/export /home/nfsuser nfs4 rw 0 0
me@host:/srv /mnt/remote fuse.sshfs rw 0 0
`

func TestMountFSType(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/home/me/.config/jkl/session_context.json", "ext4"},
		{"/mnt/c/Users/me/store.json", "9p"},
		{"/mnt/cache/store.json", "ext4"},
		{"/home/nfsuser/.config/jkl/session_context.json", "nfs4"},
		{"/mnt/remote/x.json", "fuse.sshfs"},
	}
	for _, tt := range tests {
		if got := mountFSType(sampleMounts, tt.path); got != tt.want {
			t.Errorf("mountFSType(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestWarningForFS(t *testing.T) {
	if w := warningForFS("ext4"); w != "" {
		t.Errorf("ext4 should not warn, got %q", w)
	}
	for _, fs := range []string{"9p", "nfs", "nfs4", "cifs", "smbfs", "fuse.sshfs"} {
		if warningForFS(fs) == "" {
			t.Errorf("%s should warn", fs)
		}
	}
}
