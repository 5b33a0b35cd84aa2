package main

import "github.com/grapic/facematch/cmd"

func main() {
	cmd.Execute()
}
