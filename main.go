package main

import "github.com/theirongolddev/planhaus/cmd"

func main() {
	cmd.Execute()
}
