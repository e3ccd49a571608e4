// Command reviewctl is a terminal companion for the bus-pass API: it checks
// application status and follows the live review feed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"buspass/internal/notifications"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  reviewctl [-api URL] status <applicationNo>                       - Show application status")
	fmt.Println("  reviewctl [-api URL] feed [-token T | -user U -password P]        - Follow review events")
}

func main() {
	api := flag.String("api", envOr("BUSPASS_API", "http://localhost:8375"), "API base URL")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := newAPIClient(*api)

	switch args[0] {
	case "status":
		if len(args) < 2 {
			fmt.Println("Usage: reviewctl status <applicationNo>")
			os.Exit(1)
		}
		view, err := client.status(ctx, args[1])
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		fmt.Printf("%s  %s  %s", view.ApplicationNo, view.StudentName, view.Status)
		if view.RejectionReason != "" {
			fmt.Printf("  (%s)", view.RejectionReason)
		}
		fmt.Println()

	case "feed":
		fs := flag.NewFlagSet("feed", flag.ExitOnError)
		token := fs.String("token", os.Getenv("BUSPASS_TOKEN"), "Operator bearer token")
		user := fs.String("user", "", "Operator username")
		password := fs.String("password", "", "Operator password")
		_ = fs.Parse(args[1:])

		switch {
		case *token != "":
			client.withToken(*token)
		case *user != "":
			if _, err := client.login(ctx, *user, *password); err != nil {
				log.Fatalf("❌ Login failed: %v", err)
			}
			log.Printf("✅ Logged in as %s", *user)
		default:
			log.Fatal("feed needs -token or -user/-password")
		}

		log.Printf("Following review events on %s (Ctrl+C to stop)", *api)
		if err := client.follow(ctx, printEvent); err != nil {
			log.Fatalf("❌ Feed stopped: %v", err)
		}

	default:
		fmt.Printf("Unknown command: %s\n", args[0])
		usage()
		os.Exit(1)
	}
}

func printEvent(ev notifications.ReviewEvent) {
	line := fmt.Sprintf("%s  %-22s %s", ev.OccurredAt.Local().Format(time.TimeOnly), ev.Type, ev.ApplicationNo)
	if ev.RejectionReason != "" {
		line += "  reason=" + string(ev.RejectionReason)
	}
	fmt.Println(line)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
