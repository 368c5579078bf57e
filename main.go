package main

import "github.com/dayuer/hipbot-go/cmd"

func main() {
	cmd.Execute()
}
