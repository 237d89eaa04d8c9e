// Command admintoken mints an admin-audience token signed with ADMIN_TOKEN_SECRET.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/isdelr/account-service/internal/auth"
	"github.com/isdelr/account-service/internal/config"
	"github.com/isdelr/account-service/internal/logger"
	"github.com/rs/zerolog/log"
)

func main() {
	name := flag.String("name", "admin", "name claim of the token")
	email := flag.String("email", "", "email claim of the token")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	if *email == "" {
		log.Fatal().Msg("-email is required")
	}

	issuer := auth.NewTokenIssuer(cfg.UserTokenSecret, cfg.AdminTokenSecret, cfg.TokenTTL)
	token, err := issuer.Issue(*name, *email, auth.AudienceAdmin)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to sign admin token")
	}
	fmt.Println(token)
}
