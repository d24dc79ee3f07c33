// Package toolchain provisions the pinned Node.js and Python runtimes a
// bench needs, through nvm and pyenv respectively.
//
// Pins are strict: an installed runtime is only accepted when it reports
// exactly the requested version. There is no "compatible version" matching.
package toolchain

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/sabiqazhar/frappe-env-setup/internal/shell"
)

// Pin is an exact X.Y.Z runtime version.
type Pin struct {
	raw string
	v   *semver.Version
}

// ParsePin accepts only full versions such as "18.20.4"; ranges, partial
// versions and "v" prefixes are rejected.
func ParsePin(s string) (Pin, error) {
	v, err := semver.StrictNewVersion(strings.TrimSpace(s))
	if err != nil {
		return Pin{}, fmt.Errorf("version pin %q must be an exact X.Y.Z version: %w", s, err)
	}
	return Pin{raw: v.String(), v: v}, nil
}

func (p Pin) String() string { return p.raw }

// Matches reports whether a tool's --version output names exactly this pin.
func (p Pin) Matches(reported string) bool {
	got, err := parseReported(reported)
	if err != nil {
		return false
	}
	return got.Equal(p.v)
}

// PinMismatchError means a runtime is present but is not the pinned version.
type PinMismatchError struct {
	Tool string
	Want string
	Got  string
}

func (e *PinMismatchError) Error() string {
	return fmt.Sprintf("%s version pinned to %s but found %q; refusing to substitute", e.Tool, e.Want, e.Got)
}

// parseReported extracts the version from output like "v18.20.4" or
// "Python 3.11.9".
func parseReported(out string) (*semver.Version, error) {
	line := strings.TrimSpace(strings.SplitN(strings.TrimSpace(out), "\n", 2)[0])
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty version output")
	}
	return semver.NewVersion(strings.TrimPrefix(fields[len(fields)-1], "v"))
}

// reportedVersion runs "<exe> --version" and returns its trimmed output.
func reportedVersion(ctx context.Context, r shell.Runner, exe string) (string, error) {
	res, err := r.Run(ctx, shell.Command{Name: exe, Args: []string{"--version"}})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Output), nil
}

// verify runs exe --version and fails unless it matches pin exactly.
func verify(ctx context.Context, r shell.Runner, tool, exe string, pin Pin) error {
	out, err := reportedVersion(ctx, r, exe)
	if err != nil {
		return fmt.Errorf("checking %s version: %w", tool, err)
	}
	if !pin.Matches(out) {
		return &PinMismatchError{Tool: tool, Want: pin.String(), Got: out}
	}
	return nil
}
