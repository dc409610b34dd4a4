package main

import (
	"os"

	"github.com/prefixsec/prefixsec/cmd"
)

func main() {
	code := cmd.Execute()
	os.Exit(code)
}
