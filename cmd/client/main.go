package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"roadsafe/internal/app"
	"roadsafe/internal/auth"
	"roadsafe/internal/config"
)

func main() {
	godotenv.Load()
	cfg := config.Load()

	if len(os.Args) > 1 {
		runAuthCommand(cfg, os.Args[1:])
		return
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to start client: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		log.Fatalf("Client exited: %v", err)
	}
}

func runAuthCommand(cfg *config.Config, args []string) {
	store := auth.NewFileStore(cfg.TokenPath)
	client := auth.NewClient(cfg.APIBaseURL, store)
	ctx := context.Background()

	switch args[0] {
	case "login":
		if len(args) != 3 {
			log.Fatalf("usage: client login <email> <password>")
		}
		user, err := client.Login(ctx, args[1], args[2])
		if err != nil {
			log.Fatalf("Login failed: %v", err)
		}
		fmt.Printf("Logged in as %s <%s>\n", user.Name, user.Email)

	case "signup":
		if len(args) != 4 {
			log.Fatalf("usage: client signup <name> <email> <password>")
		}
		user, err := client.Signup(ctx, args[1], args[2], args[3])
		if err != nil {
			log.Fatalf("Signup failed: %v", err)
		}
		fmt.Printf("Account created for %s <%s>\n", user.Name, user.Email)

	case "logout":
		if err := store.Clear(); err != nil {
			log.Fatalf("Logout failed: %v", err)
		}
		fmt.Println("Credential cleared")

	default:
		log.Fatalf("unknown command %q (expected login, signup or logout)", args[0])
	}
}
