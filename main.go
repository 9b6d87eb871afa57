package main

import "github.com/sliceback/sliceback/cmd"

// version is overridden at build time via -ldflags, matching the teacher's
// own version-stamping approach in system.Version.
var version = "dev"

func main() {
	cmd.Version = version
	cmd.Execute()
}
