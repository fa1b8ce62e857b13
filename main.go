package main

import "sage-backend/cmd/cli"

func main() {
	cli.Execute()
}
