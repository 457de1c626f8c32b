package main

import "github.com/Yates-Labs/aethel/cmd"

func main() {
	cmd.Execute()
}
