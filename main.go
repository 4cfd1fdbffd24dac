// The main package for the sbcorpus executable.
package main

import "github.com/JakeFAU/sbnation-corpus/cmd"

func main() {
	cmd.Execute()
}
