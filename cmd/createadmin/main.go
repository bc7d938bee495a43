package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/gitaditya567/itskillhub/internal/bootstrap"
	"github.com/gitaditya567/itskillhub/internal/config"
	"github.com/gitaditya567/itskillhub/internal/util"
)

const passwordEnv = "ADMIN_PASSWORD"

func main() {
	email := flag.String("email", "admin@itskillhub.com", "admin email")
	name := flag.String("name", "Admin User", "display name")
	password := flag.String("password", "", "new password (defaults to $"+passwordEnv+")")
	flag.Parse()

	pw := *password
	if pw == "" {
		pw = os.Getenv(passwordEnv)
	}

	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		exitErr(fmt.Errorf("load config: %w", err))
	}
	util.InitLogger(cfg.LogLevel)

	rt, err := bootstrap.New(context.Background(), cfg)
	if err != nil {
		exitErr(fmt.Errorf("init app: %w", err))
	}
	defer rt.Close()

	user, created, err := rt.App.EnsureAdmin(*name, *email, pw)
	if err != nil {
		exitErr(err)
	}
	if created {
		fmt.Printf("created admin %s (%s)\n", user.Email, user.ID)
		return
	}
	fmt.Printf("promoted %s (%s) to admin\n", user.Email, user.ID)
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "createadmin: %v\n", err)
	os.Exit(1)
}
