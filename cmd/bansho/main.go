package main

import "github.com/Microck/bansho/cmd/bansho/cmd"

func main() {
	cmd.Execute()
}
