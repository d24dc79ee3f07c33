package pkgmgr

import (
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"gopkg.in/ini.v1"
)

// DefaultOSRelease is the standard os-release location.
const DefaultOSRelease = "/etc/os-release"

var distroKinds = map[string]Kind{
	"debian":      Apt,
	"ubuntu":      Apt,
	"linuxmint":   Apt,
	"pop":         Apt,
	"fedora":      Dnf,
	"rhel":        Dnf,
	"centos":      Dnf,
	"rocky":       Dnf,
	"almalinux":   Dnf,
	"amzn":        Dnf,
	"arch":        Pacman,
	"manjaro":     Pacman,
	"endeavouros": Pacman,
}

// Detector finds the host package manager. The zero value is not usable;
// call NewDetector.
type Detector struct {
	OSReleasePath string
	GOOS          string
	LookPath      func(string) (string, error)
}

// NewDetector returns a detector for the running host.
func NewDetector() *Detector {
	return &Detector{
		OSReleasePath: DefaultOSRelease,
		GOOS:          runtime.GOOS,
		LookPath:      exec.LookPath,
	}
}

// Detect resolves the package manager: macOS means Homebrew, Linux consults
// os-release ID then ID_LIKE, and finally the first manager binary on PATH.
func (d *Detector) Detect() (Kind, error) {
	if d.GOOS == "darwin" {
		return Brew, nil
	}

	kind, err := d.fromOSRelease()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Unknown, err
	}
	if kind != Unknown {
		return kind, nil
	}
	return d.fromPath(), nil
}

func (d *Detector) fromOSRelease() (Kind, error) {
	if _, err := os.Stat(d.OSReleasePath); err != nil {
		return Unknown, err
	}
	f, err := ini.Load(d.OSReleasePath)
	if err != nil {
		return Unknown, err
	}

	sec := f.Section("")
	ids := []string{sec.Key("ID").String()}
	ids = append(ids, strings.Fields(sec.Key("ID_LIKE").String())...)
	for _, id := range ids {
		if kind, ok := distroKinds[strings.ToLower(strings.Trim(id, `"`))]; ok {
			return kind, nil
		}
	}
	return Unknown, nil
}

func (d *Detector) fromPath() Kind {
	probes := []struct {
		bin  string
		kind Kind
	}{
		{"apt-get", Apt},
		{"dnf", Dnf},
		{"pacman", Pacman},
		{"brew", Brew},
	}
	for _, p := range probes {
		if _, err := d.LookPath(p.bin); err == nil {
			return p.kind
		}
	}
	return Unknown
}
