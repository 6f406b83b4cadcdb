package main

import "github.com/josephgoksu/obbywatch/cmd"

func main() {
	cmd.Execute()
}
