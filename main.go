package main

import "maildigest/internal/cli"

func main() {
	cli.Execute()
}
