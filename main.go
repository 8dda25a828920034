package main

import "github.com/samhoang/silk/cmd"

func main() {
	cmd.Execute()
}
