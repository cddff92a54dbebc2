// Package pythons inventories the Python interpreters installed on the
// machine and plans switching the default one or removing one.
package pythons

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Vendor names.
const (
	VendorMacSystem  = "macOS System"
	VendorHomebrew   = "Homebrew"
	VendorOfficial   = "Official Installer"
	VendorStore      = "Microsoft Store"
	VendorSystem     = "System Install"
	VendorConda      = "Conda"
	VendorPyenv      = "pyenv"
	VendorUserOther  = "User/Other"
	frameworkMarker  = "Python.framework"
	frameworkVersion = "/Library/Frameworks/Python.framework/Versions"
)

var (
	unixBinaryRE = regexp.MustCompile(`^python(\d+(\.\d+)?)?$`)
	versionRE    = regexp.MustCompile(`Python (\d+\.\d+\.\d+)`)
)

// MatchBinaryName reports whether a file name looks like an interpreter:
// python, python3, python3.12, or python*.exe (not *config*) on Windows.
func MatchBinaryName(name, goos string) bool {
	if goos == "windows" {
		n := strings.ToLower(name)
		return n == "python.exe" ||
			(strings.HasPrefix(n, "python") && strings.HasSuffix(n, ".exe") && !strings.Contains(n, "config"))
	}
	return unixBinaryRE.MatchString(name)
}

var linuxSystemDirs = []string{"/usr/bin/", "/bin/", "/usr/sbin/", "/usr/libexec/"}

// ClassifyVendor guesses who installed the interpreter at path and whether
// it belongs to the operating system.
func ClassifyVendor(path, goos string) (vendor string, protected bool) {
	p := strings.ToLower(filepath.ToSlash(path))

	switch goos {
	case "darwin":
		switch {
		case strings.Contains(p, "/system/library"), strings.Contains(p, "/usr/bin"):
			return VendorMacSystem, true
		case strings.Contains(p, "homebrew"), strings.Contains(p, "cellar"):
			return VendorHomebrew, false
		case strings.Contains(p, "/library/frameworks/python.framework"):
			return VendorOfficial, false
		}
	case "windows":
		switch {
		case strings.Contains(p, "windowsapps"):
			return VendorStore, true
		case strings.Contains(p, "program files"):
			return VendorSystem, false
		}
	default:
		// Owned by the distribution package manager.
		for _, dir := range linuxSystemDirs {
			if strings.HasPrefix(p, dir) {
				return VendorSystem, true
			}
		}
	}

	switch {
	case strings.Contains(p, "anaconda"), strings.Contains(p, "miniconda"):
		return VendorConda, false
	case strings.Contains(p, ".pyenv"):
		return VendorPyenv, false
	}
	return VendorUserOther, false
}

// ParseVersion extracts "3.12.1" from `python --version` output.
func ParseVersion(out string) string {
	m := versionRE.FindStringSubmatch(out)
	if m == nil {
		return ""
	}
	return m[1]
}

// MajorMinor returns "3.12" for "3.12.1".
func MajorMinor(version string) string {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return version
	}
	return parts[0] + "." + parts[1]
}

// ArchFromLipo turns `lipo -archs` output into a readable architecture.
func ArchFromLipo(out string) string {
	archs := strings.TrimSpace(out)
	hasX86 := strings.Contains(archs, "x86_64")
	hasArm := strings.Contains(archs, "arm64")
	switch {
	case hasX86 && hasArm:
		return "Universal"
	case hasArm:
		return "Apple Silicon"
	case hasX86:
		return "Intel 64"
	case archs == "":
		return "Unknown"
	}
	return archs
}

// ArchFromMachine turns platform.machine() output into an architecture.
// Windows only distinguishes 32 from 64 bit.
func ArchFromMachine(out, goos string) string {
	machine := strings.TrimSpace(out)
	if machine == "" {
		return "Unknown"
	}
	if goos == "windows" {
		if strings.Contains(machine, "64") {
			return "64-bit"
		}
		return "32-bit"
	}
	return machine
}

// compareVersions orders dotted versions numerically.
func compareVersions(a, b string) int {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var x, y int
		if i < len(as) {
			x, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			y, _ = strconv.Atoi(bs[i])
		}
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	return 0
}

// WellKnownDirs returns install locations searched on top of PATH.
func WellKnownDirs(goos, localAppData string) []string {
	switch goos {
	case "darwin":
		dirs := []string{"/opt/homebrew/bin", "/usr/local/bin", "/usr/bin"}
		if matches, err := filepath.Glob(frameworkVersion + "/*/bin"); err == nil {
			dirs = append(matches, dirs...)
		}
		return dirs
	case "windows":
		var dirs []string
		if localAppData != "" {
			dirs = append(dirs, filepath.Join(localAppData, "Programs", "Python"))
		}
		return append(dirs, `C:\Python`, `C:\Program Files\Python`, `C:\Program Files`)
	}
	return []string{"/usr/local/bin", "/usr/bin"}
}
