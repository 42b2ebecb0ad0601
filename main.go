package main

import "github.com/endorses/colorcat/cmd"

func main() {
	cmd.Execute()
}
