package main

import (
	"github.com/MeKo-Tech/lipi/cmd/ocr/cmd"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine, the environment and config files still apply.
	_ = godotenv.Load()
	cmd.Execute()
}
