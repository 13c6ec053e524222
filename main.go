package main

import (
	"github.com/joho/godotenv"

	"vendorsync/internal/cli"
)

func main() {
	// Optional .env beside the binary; real env always wins.
	_ = godotenv.Load()
	cli.Execute()
}
