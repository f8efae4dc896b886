package main

import "issuewatch/cmd"

func main() {
	cmd.Execute()
}
