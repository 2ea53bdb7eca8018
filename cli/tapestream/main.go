package main

import (
	"os"

	tapestreamcmder "github.com/papercomputeco/tapestream/cmd/tapestream"
)

func main() {
	cmd := tapestreamcmder.NewTapestreamCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
