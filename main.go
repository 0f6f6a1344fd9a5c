package main

import (
	"log"

	"github.com/zvonler/ljcorpus/cli"
)

func main() {
	ljcorpusCmd := cli.NewCommand()
	if err := ljcorpusCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
