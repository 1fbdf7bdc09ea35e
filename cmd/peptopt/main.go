package main

import (
	"github.com/mchmarny/peptopt/pkg/cli"
)

func main() {
	cli.Execute()
}
