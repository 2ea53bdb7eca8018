// Package utils holds small helpers shared by the tapestream binaries.
package utils

// Build metadata, set through -ldflags at release time.
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)
