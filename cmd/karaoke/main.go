package main

import "github.com/stemsync/karaoke/internal/cli"

func main() {
	cli.Execute()
}
