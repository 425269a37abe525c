// main is the entry point of the codegrade CLI and server.
package main

import (
	"github.com/huangsam/codegrade/cmd"
	"github.com/huangsam/codegrade/internal/contract"
)

func main() {
	if err := cmd.Execute(); err != nil {
		contract.LogFatal("Command failed", err)
	}
}
