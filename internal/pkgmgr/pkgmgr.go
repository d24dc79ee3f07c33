// Package pkgmgr models the host package manager as a closed set of
// variants, each with its own handler.
package pkgmgr

import (
	"github.com/sabiqazhar/frappe-env-setup/internal/shell"
)

// Kind identifies a package manager family.
type Kind int

const (
	Unknown Kind = iota
	Apt
	Dnf
	Pacman
	Brew
)

func (k Kind) String() string {
	switch k {
	case Apt:
		return "apt"
	case Dnf:
		return "dnf"
	case Pacman:
		return "pacman"
	case Brew:
		return "brew"
	default:
		return "unknown"
	}
}

// Manager builds the commands for one package manager.
type Manager interface {
	Kind() Kind
	// Refresh updates the package index. ok is false when the manager has
	// no separate refresh step.
	Refresh() (cmd shell.Command, ok bool)
	// Install installs a single native package.
	Install(pkg string) shell.Command
	// NeedsRoot reports whether commands must run through sudo.
	NeedsRoot() bool
}

// For returns the handler for k. Unknown gets a handler that installs nothing.
func For(k Kind) Manager {
	switch k {
	case Apt:
		return aptManager{}
	case Dnf:
		return dnfManager{}
	case Pacman:
		return pacmanManager{}
	case Brew:
		return brewManager{}
	default:
		return unknownManager{}
	}
}

type aptManager struct{}

func (aptManager) Kind() Kind { return Apt }
func (aptManager) Refresh() (shell.Command, bool) {
	return shell.Command{Name: "apt-get", Args: []string{"update", "-qq"}}, true
}
func (aptManager) Install(pkg string) shell.Command {
	return shell.Command{
		Name: "apt-get",
		Args: []string{"install", "-y", "-qq", "--no-install-recommends", pkg},
		Env:  []string{"DEBIAN_FRONTEND=noninteractive"},
	}
}
func (aptManager) NeedsRoot() bool { return true }

type dnfManager struct{}

func (dnfManager) Kind() Kind { return Dnf }
func (dnfManager) Refresh() (shell.Command, bool) {
	return shell.Command{Name: "dnf", Args: []string{"makecache", "-q"}}, true
}
func (dnfManager) Install(pkg string) shell.Command {
	return shell.Command{Name: "dnf", Args: []string{"install", "-y", "-q", pkg}}
}
func (dnfManager) NeedsRoot() bool { return true }

type pacmanManager struct{}

func (pacmanManager) Kind() Kind { return Pacman }
func (pacmanManager) Refresh() (shell.Command, bool) {
	return shell.Command{Name: "pacman", Args: []string{"-Sy", "--noconfirm"}}, true
}
func (pacmanManager) Install(pkg string) shell.Command {
	return shell.Command{Name: "pacman", Args: []string{"-S", "--needed", "--noconfirm", pkg}}
}
func (pacmanManager) NeedsRoot() bool { return true }

type brewManager struct{}

func (brewManager) Kind() Kind { return Brew }
func (brewManager) Refresh() (shell.Command, bool) {
	return shell.Command{Name: "brew", Args: []string{"update", "--quiet"}}, true
}
func (brewManager) Install(pkg string) shell.Command {
	return shell.Command{Name: "brew", Args: []string{"install", "--quiet", pkg}}
}
func (brewManager) NeedsRoot() bool { return false }

type unknownManager struct{}

func (unknownManager) Kind() Kind { return Unknown }
func (unknownManager) Refresh() (shell.Command, bool) { return shell.Command{}, false }
func (unknownManager) Install(string) shell.Command { return shell.Command{} }
func (unknownManager) NeedsRoot() bool { return false }
