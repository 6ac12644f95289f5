package main

import (
	"os"

	"github.com/netbirdio/autoupdater/updater/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
