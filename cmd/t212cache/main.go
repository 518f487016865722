package main

import (
	"t212cache/internal/cli"
)

func main() {
	cli.Execute()
}
