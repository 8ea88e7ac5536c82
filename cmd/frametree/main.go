package main

import (
	"github.com/utracetools/frametree/internal/cli"
)

func main() {
	cli.Execute()
}
