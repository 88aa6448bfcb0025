package main

import "github.com/felixgeelhaar/quirk/cmd/quirk/cli"

func main() {
	cli.Execute()
}
