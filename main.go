package main

import "github.com/notargets/galerkin/cmd"

func main() {
	cmd.Execute()
}
