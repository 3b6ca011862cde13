// Command devtoken mints HS256 bearer tokens for AUTH_PROVIDER=jwt.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/smartpick/smartpick/internal/auth"
	"github.com/smartpick/smartpick/internal/model"
)

type output struct {
	Subject   string    `json:"subject"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	Token     string    `json:"token"`
}

func main() {
	var (
		secret  = flag.String("secret", os.Getenv("AUTH_JWT_SECRET"), "HMAC secret shared with the API server")
		subject = flag.String("subject", "", "Token subject (defaults to the email)")
		email   = flag.String("email", "dev@smartpick.local", "Identity email")
		name    = flag.String("name", "", "Display name")
		ttl     = flag.Duration("ttl", time.Hour, "Token lifetime")
		format  = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "AUTH_JWT_SECRET or -secret is required")
		os.Exit(1)
	}
	if strings.TrimSpace(*email) == "" {
		fmt.Fprintln(os.Stderr, "-email is required")
		os.Exit(1)
	}
	if *ttl <= 0 {
		fmt.Fprintln(os.Stderr, "-ttl must be positive")
		os.Exit(1)
	}

	verifier, err := auth.NewJWTVerifier(*secret)
	if err != nil {
		fmt.Fprintln(os.Stderr, "create signer:", err)
		os.Exit(1)
	}

	id := model.Identity{
		Subject: *subject,
		Email:   strings.TrimSpace(*email),
		Name:    *name,
	}
	if id.Subject == "" {
		id.Subject = id.Email
	}

	token, err := verifier.Issue(id, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "issue token:", err)
		os.Exit(1)
	}

	out := output{
		Subject:   id.Subject,
		Email:     id.Email,
		Name:      id.Name,
		ExpiresAt: time.Now().Add(*ttl).UTC().Truncate(time.Second),
		Token:     token,
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println(out.Token)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}
