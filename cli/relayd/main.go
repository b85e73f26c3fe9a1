package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	relaycmder "github.com/zerouihq/relay/cmd/relay"
)

func main() {
	// Best effort: a missing .env file is fine, the environment and
	// defaults cover everything.
	_ = godotenv.Load()

	cmd := relaycmder.NewRelayCmd()

	err := cmd.Execute()
	if err != nil {
		fmt.Printf("Error executing root command: %v\n", err)
		os.Exit(1)
	}
}
