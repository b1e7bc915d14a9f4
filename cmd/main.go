package main

import (
	"os"

	"github.com/vityaded/Kahoot-clone/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
