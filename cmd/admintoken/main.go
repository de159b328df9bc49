// Command admintoken prints a signed operator token for the /admin routes.
//
//	ADMIN_JWT_SECRET=... go run ./cmd/admintoken -subject ops -ttl 1h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/playmate/server/internal/auth"
)

func main() {
	_ = godotenv.Load(".env")

	subject := flag.String("subject", "operator", "token subject recorded in admin request logs")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	tokens := auth.NewAdminTokens(os.Getenv("ADMIN_JWT_SECRET"))
	token, err := tokens.Sign(*subject, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "admintoken: %v (is ADMIN_JWT_SECRET set?)\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
