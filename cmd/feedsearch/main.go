package main

import "feedsearch/internal/cli"

func main() {
	cli.Execute()
}
