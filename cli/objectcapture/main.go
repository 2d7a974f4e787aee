// Package main is the objectcapture command itself.
package main

import (
	"log"
	"os"

	"github.com/objectcapture/objectcapture/cli"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
