package main

import (
	"os"

	"github.com/gzhole/rulebench/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
