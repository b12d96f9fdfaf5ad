package main

import "github.com/nfrund/chorus/cmd/chorus/cmd"

func main() {
	cmd.Execute()
}
