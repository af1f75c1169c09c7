package main

import "github.com/tanq16/porygon/cmd"

func main() {
	cmd.Execute()
}
