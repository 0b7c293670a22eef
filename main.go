package main

import "github.com/eikrem/stravadump/cmd"

func main() {
	cmd.Execute()
}
