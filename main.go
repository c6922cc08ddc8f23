package main

import "github.com/derickschaefer/tvguidefetch/cmd"

func main() {
	cmd.Execute()
}
