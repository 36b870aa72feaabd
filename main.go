package main

import "github.com/tanq16/telegrab/cmd"

func main() {
	cmd.Execute()
}
