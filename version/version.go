// Package version holds build metadata injected at link time.
package version

import (
	"fmt"
	"runtime"
)

// Populated via -ldflags at build time.
var (
	GitRelease    = "dev"
	GitCommit     = "unknown"
	GitCommitDate = "unknown"
)

// GoInfo describes the Go toolchain and target platform.
var GoInfo = fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
