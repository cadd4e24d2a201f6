package main

import "github.com/aaronromeo/inboxsweep/internal/cli"

func main() {
	cli.Execute()
}
