package main

import (
	"os"

	"github.com/OpenClaudeAgent/opencode-monitor/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
