package main

import "github.com/terraconstructs/classgrid/cmd/classgridctl/cmd"

func main() {
	cmd.Execute()
}
