package app

import "github.com/kart-io/version"

// GetVersion returns the git version the binary was built from, e.g. "v0.3.1".
func GetVersion() string {
	return version.Get().GitVersion
}
