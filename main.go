package main

import "github.com/khanhnv2901/securescan/cmd"

var execCmd = cmd.Execute

func main() {
	execCmd()
}
