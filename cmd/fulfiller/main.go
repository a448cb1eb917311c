package main

import (
	"github.com/joho/godotenv"
)

func main() {
	// Missing .env is fine; the settings file and environment still apply.
	_ = godotenv.Load()
	Execute()
}
