package main

import "github.com/redron/dispatch/internal/cmd"

func main() {
	cmd.Main()
}
