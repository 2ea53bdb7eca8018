package main

import (
	"os"

	apicmder "github.com/papercomputeco/tapestream/cmd/tapestream/serve/api"
)

func main() {
	cmd := apicmder.NewAPICmd()
	cmd.Use = "tapestreamapi"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .tapestream/ config directory")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
