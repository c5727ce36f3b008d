package main

import "github.com/VoxDroid/pyship/cmd"

func main() {
	cmd.Execute()
}
