package main

import "github.com/vietddude/fleetwatch/internal/cli"

func main() {
	cli.Execute()
}
