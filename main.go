package main

import (
	"github.com/starlight-qa/starlight/cmd"
)

func main() {
	cmd.Execute()
}
