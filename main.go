// The main package for the tuoitre-crawler executable.
package main

import (
	"github.com/JakeFAU/tuoitre-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
