package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"DailyBriefing/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
