package main

import "github.com/mtavish/conclave/internal/cli"

func main() {
	cli.Execute()
}
