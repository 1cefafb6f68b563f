package main

import "github.com/nhle/phoenix-warmup/cmd/phoenix/commands"

func main() {
	commands.Execute()
}
