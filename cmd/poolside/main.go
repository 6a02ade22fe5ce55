package main

import (
	"github.com/example/poolside-scheduler/cmd"
	"github.com/joho/godotenv"
)

func main() {
	// Local development convenience; absent .env is fine.
	_ = godotenv.Load()
	cmd.Execute()
}
