package main

import "github.com/archelon/pricesim/cli"

func main() {
	cli.Execute()
}
