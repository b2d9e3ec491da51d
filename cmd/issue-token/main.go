// Command issue-token prints a bearer token for local testing, signed with
// JWT_SECRET from the environment or .env.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/congo-pay/escrow_engine/internal/auth"
	"github.com/congo-pay/escrow_engine/internal/domain"
)

func main() {
	account := flag.String("account", "", "account id placed in the sub claim")
	role := flag.String("role", string(domain.RoleClient), "client or company")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET must be set")
		os.Exit(1)
	}

	token, err := auth.Issue(*account, domain.Role(*role), secret, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(2)
	}
	fmt.Println(token)
}
