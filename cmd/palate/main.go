package main

import "palate/internal/cli"

func main() {
	cli.Execute()
}
