package common

import (
	"github.com/ternarybob/banner"
)

// Version is stamped at build time via -ldflags
var Version = "dev"

// GetVersion returns the build version
func GetVersion() string {
	return Version
}

// PrintBanner displays the application banner
func PrintBanner(version string) {
	banner.PrintSimple("Berkas", version)
}
