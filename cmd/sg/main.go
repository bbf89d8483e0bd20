package main

import "github.com/ogulcanaydogan/spend-guardian/internal/cli"

func main() {
	cli.Execute()
}
