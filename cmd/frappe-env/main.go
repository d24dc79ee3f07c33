// Package main is the entry point for frappe-env, the Frappe development
// environment bootstrapper.
//
// Typical use inside the devcontainer:
//
//	frappe-env bootstrap --config frappe-env.yaml
//
// and on the host:
//
//	frappe-env up
package main

import "os"

func main() {
	os.Exit(Execute())
}
