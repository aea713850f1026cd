package main

import (
	"os"

	"github.com/five82/melinda/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
