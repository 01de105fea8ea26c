package main

import (
	"os"

	"github.com/cppla/anonid/utils"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		utils.Sugar.Errorf("command failed: %v", err)
		os.Exit(1)
	}
}
