package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/mhartmann/staffing-recommender-go/pkg/auth"
)

// Generates a signed API key for one consumer, offline. The server accepts
// any key signed with the same API_MASTER_SECRET without a database roundtrip.
func main() {
	_ = godotenv.Load(".env", "../.env")

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: keygen <consumer-name>")
		os.Exit(1)
	}

	if os.Getenv("API_MASTER_SECRET") == "" {
		fmt.Fprintln(os.Stderr, "error: API_MASTER_SECRET is not set")
		os.Exit(1)
	}

	name := os.Args[1]
	fmt.Printf("API key for %s:\n%s\n", name, auth.GenerateHMACKey(name))
}
