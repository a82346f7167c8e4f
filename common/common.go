// Package common holds shared constants and build metadata.
package common

// PackageName identifies this module in logs and metrics.
const PackageName = "mystery"

// Version is the build version, overridden at link time via
// -ldflags "-X github.com/mfrager/mystery/common.Version=...".
var Version = "dev"
