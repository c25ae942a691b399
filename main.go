package main

import "dupdup/cmd"

func main() {
	cmd.Execute()
}
