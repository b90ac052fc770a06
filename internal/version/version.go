// Package version holds build metadata injected at link time via -ldflags.
package version

import (
	"fmt"
	"runtime"
)

var (
	App     = "BuildGate"
	Version = "dev"
	Commit  string
	Date    string
)

// String returns a one-line description of the running build.
func String() string {
	s := fmt.Sprintf("%s %s", App, Version)
	if Commit != "" {
		s += fmt.Sprintf(" (%s)", shortCommit())
	}
	return s
}

// Print writes the full build information to stdout.
func Print() {
	fmt.Println(String())
	if Date != "" {
		fmt.Printf("  built: %s\n", Date)
	}
	fmt.Printf("  go:    %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func shortCommit() string {
	if len(Commit) > 7 {
		return Commit[:7]
	}
	return Commit
}
