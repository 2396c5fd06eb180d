package main

import "github.com/unboxd/unbox/cmd"

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// main starts the unbox cli
func main() {
	cmd.Run(version, commit, date)
}
