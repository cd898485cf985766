package main

import "github.com/vietddude/softscan/internal/cli"

func main() {
	cli.Execute()
}
