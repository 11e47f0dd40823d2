package main

import "github.com/relayforge/channels/cmd/channels/cmd"

func main() {
	cmd.Execute()
}
