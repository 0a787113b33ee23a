package main

import (
	"os"

	"github.com/arcfield/geoimport-go/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
