package main

import "github.com/statgo/stat/cmd/stat/cmd"

func main() {
	cmd.Execute()
}
