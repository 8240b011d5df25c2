// Command devtoken prints a bearer token signed with JWT_SECRET for local
// testing of the authenticated routes.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/iliyamo/game-catalog/internal/utils"
)

func main() {
	sub := flag.String("sub", "", "user id to put in the token (random when empty)")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		os.Exit(1)
	}
	if *sub == "" {
		*sub = uuid.NewString()
	}

	tok, err := utils.NewAccessToken(secret, *sub, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sign token:", err)
		os.Exit(1)
	}
	fmt.Printf("sub=%s exp=%s\n%s\n", *sub, tok.Exp.Format(time.RFC3339), tok.Token)
}
