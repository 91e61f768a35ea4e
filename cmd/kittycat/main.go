package main

import "github.com/blacktop/go-kittygfx/cmd/kittycat/cmd"

func main() {
	cmd.Execute()
}
