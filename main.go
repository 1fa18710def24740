// The main package for the talkscraper executable.
package main

import (
	"github.com/ldsarchive/talkscraper/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
