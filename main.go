// The main package for the cerebro executable.
package main

import (
	"github.com/JakeFAU/cerebro/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
