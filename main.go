// The main package for the frisbee executable.
package main

import (
	"github.com/JakeFAU/frisbee/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
