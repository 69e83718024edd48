package main

import "github.com/guiyumin/streamdl/internal/cmd"

func main() {
	cmd.Execute()
}
