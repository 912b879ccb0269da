package main

import (
	"os"

	"github.com/zillah777/fixia-platform-sub000/cmd/adminutil/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
