// Package main is the entry point for the apcontrol command-line tool
package main

import "github.com/mrcode/apcontrol/internal/cli"

func main() {
	cli.Execute()
}
