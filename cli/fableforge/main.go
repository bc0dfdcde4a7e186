package main

import (
	"os"

	fableforgecmder "github.com/fableforge/fableforge/cmd/fableforge"
)

func main() {
	cmd := fableforgecmder.NewFableforgeCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
