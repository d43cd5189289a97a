package main

import "github.com/vietddude/snap2pass/internal/cli"

func main() {
	cli.Execute()
}
