package main

import "github.com/mcoot/turnclock/internal/cli"

func main() {
	cli.Execute()
}
