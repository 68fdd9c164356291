package main

import (
	"os"

	"github.com/petracek/modelite/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
