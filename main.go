package main

import (
	"github.com/tebeka/atexit"

	"github.com/cyb70289/cmn-analyzer/cmd"
)

func main() {
	cmd.Execute()
	// run registered cleanups (session reset, recorder flush)
	atexit.Exit(0)
}
