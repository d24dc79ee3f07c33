package pkgmgr

// catalog maps the logical package names used in config to the native
// package for each manager. A missing entry means the manager has no
// equivalent and the package is skipped.
var catalog = map[string]map[Kind]string{
	"git":  {Apt: "git", Dnf: "git", Pacman: "git", Brew: "git"},
	"curl": {Apt: "curl", Dnf: "curl", Pacman: "curl", Brew: "curl"},
	"build-tools": {
		Apt:    "build-essential",
		Dnf:    "gcc-c++",
		Pacman: "base-devel",
	},
	"pkg-config": {Apt: "pkg-config", Dnf: "pkgconf-pkg-config", Pacman: "pkgconf", Brew: "pkg-config"},
	"mariadb-client": {
		Apt:    "mariadb-client",
		Dnf:    "mariadb",
		Pacman: "mariadb-clients",
		Brew:   "mariadb",
	},
	"postgres-client": {
		Apt:    "postgresql-client",
		Dnf:    "postgresql",
		Pacman: "postgresql-libs",
		Brew:   "libpq",
	},
	"redis-tools": {Apt: "redis-tools", Dnf: "redis", Pacman: "redis", Brew: "redis"},
	"libffi":      {Apt: "libffi-dev", Dnf: "libffi-devel", Pacman: "libffi", Brew: "libffi"},
	"libssl":      {Apt: "libssl-dev", Dnf: "openssl-devel", Pacman: "openssl", Brew: "openssl@3"},
	"libmysqlclient": {
		Apt:    "libmariadb-dev",
		Dnf:    "mariadb-connector-c-devel",
		Pacman: "mariadb-libs",
		Brew:   "mariadb-connector-c",
	},
	"cron":        {Apt: "cron", Dnf: "cronie", Pacman: "cronie"},
	"wkhtmltopdf": {Apt: "wkhtmltopdf", Dnf: "wkhtmltopdf", Brew: "wkhtmltopdf"},
	"xvfb":        {Apt: "xvfb", Dnf: "xorg-x11-server-Xvfb", Pacman: "xorg-server-xvfb"},
	"fontconfig":  {Apt: "fontconfig", Dnf: "fontconfig", Pacman: "fontconfig", Brew: "fontconfig"},
}

// Resolve returns the native package name for logical on kind. Names not in
// the catalog are passed through unchanged, so config may also list native
// names directly.
func Resolve(kind Kind, logical string) (string, bool) {
	if kind == Unknown {
		return "", false
	}
	names, known := catalog[logical]
	if !known {
		return logical, true
	}
	native, ok := names[kind]
	return native, ok
}
