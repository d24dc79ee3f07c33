package toolchain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sabiqazhar/frappe-env-setup/internal/shell"
)

// Node provisions Node.js through nvm.
type Node struct {
	runner     shell.Runner
	nvmDir     string
	nvmVersion string
}

// NewNode returns a provisioner using the nvm installation at nvmDir.
// nvmVersion is the nvm release installed when nvm itself is missing.
func NewNode(r shell.Runner, nvmDir, nvmVersion string) *Node {
	return &Node{runner: r, nvmDir: nvmDir, nvmVersion: nvmVersion}
}

// Provision is what Ensure reports back.
type Provision struct {
	// Executable is the runtime binary (node or python).
	Executable string
	// BinDir holds the runtime and its companion tools.
	BinDir string
	// Installed is true when Ensure had to install the runtime.
	Installed bool
	// Fallback is set when a system runtime was used instead of the pin.
	Fallback bool
	Reported string
}

// BinDir is where nvm puts binaries for pin.
func (n *Node) BinDir(pin Pin) string {
	return filepath.Join(n.nvmDir, "versions", "node", "v"+pin.String(), "bin")
}

func (n *Node) nvmScript() string {
	return filepath.Join(n.nvmDir, "nvm.sh")
}

// Ensure makes the pinned Node.js available. An existing install is only
// verified; otherwise nvm (installed first if needed) installs the exact
// version, which is verified afterwards.
func (n *Node) Ensure(ctx context.Context, pin Pin) (Provision, error) {
	node := filepath.Join(n.BinDir(pin), "node")
	p := Provision{Executable: node, BinDir: n.BinDir(pin)}

	if fileExists(node) {
		if err := verify(ctx, n.runner, "node", node, pin); err != nil {
			return p, err
		}
		p.Reported = "v" + pin.String()
		return p, nil
	}

	if !fileExists(n.nvmScript()) {
		if err := n.installNVM(ctx); err != nil {
			return p, err
		}
	}

	install := shell.Script(
		"export NVM_DIR="+shell.Quote(n.nvmDir),
		"source "+shell.Quote(n.nvmScript()),
		"nvm install "+shell.Quote(pin.String()),
	)
	if _, err := n.runner.Run(ctx, install); err != nil {
		return p, fmt.Errorf("nvm install %s: %w", pin, err)
	}

	if err := verify(ctx, n.runner, "node", node, pin); err != nil {
		return p, err
	}
	p.Installed = true
	p.Reported = "v" + pin.String()
	return p, nil
}

// InstallGlobal runs npm install -g for pkg with the pinned runtime first on PATH.
func (n *Node) InstallGlobal(ctx context.Context, pin Pin, pkg string) error {
	cmd := shell.Command{
		Name: filepath.Join(n.BinDir(pin), "npm"),
		Args: []string{"install", "-g", pkg},
		Env:  []string{"PATH=" + n.BinDir(pin) + string(os.PathListSeparator) + os.Getenv("PATH")},
	}
	if _, err := n.runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("npm install -g %s: %w", pkg, err)
	}
	return nil
}

func (n *Node) installNVM(ctx context.Context) error {
	url := fmt.Sprintf("https://raw.githubusercontent.com/nvm-sh/nvm/%s/install.sh", n.nvmVersion)
	cmd := shell.Script("curl -fsSL " + shell.Quote(url) + " | bash")
	cmd.Env = []string{"NVM_DIR=" + n.nvmDir, "PROFILE=/dev/null"}

	if err := os.MkdirAll(n.nvmDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", n.nvmDir, err)
	}
	if _, err := n.runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("installing nvm %s: %w", n.nvmVersion, err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
