package main

import "github.com/derickschaefer/forecast/cmd"

func main() {
	cmd.Execute()
}
