package main

import "akx-core/cmd/akx-cli/cmd"

func main() {
	cmd.Execute()
}
