package main

import "github.com/datavet/datavet/cmd"

func main() {
	cmd.Execute()
}
