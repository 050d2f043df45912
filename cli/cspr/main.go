package main

import (
	"os"

	csprcmder "github.com/papercomputeco/cspr/cmd/cspr"
)

func main() {
	cmd := csprcmder.NewCsprCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
