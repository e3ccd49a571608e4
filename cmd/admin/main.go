// Package main provides operator account management for the bus-pass backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"buspass/internal/config"
	"buspass/internal/database"
	"buspass/internal/models"
	"buspass/internal/repository"
	"buspass/internal/service"

	"gopkg.in/yaml.v3"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin create <username> <password> [display name]  - Create an operator")
	fmt.Println("  go run ./cmd/admin deactivate <username>                       - Disable an operator")
	fmt.Println("  go run ./cmd/admin list                                        - List operators")
	fmt.Println("  go run ./cmd/admin seed -file operators.yml                    - Create operators from a file")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	repo := repository.NewOperatorRepository(db)
	operators := service.NewOperatorService(repo, nil)

	switch os.Args[1] {
	case "create":
		if len(os.Args) < 4 {
			fmt.Println("Usage: go run ./cmd/admin create <username> <password> [display name]")
			os.Exit(1)
		}
		in := service.CreateOperatorInput{Username: os.Args[2], Password: os.Args[3]}
		if len(os.Args) > 4 {
			in.DisplayName = os.Args[4]
		}
		op, err := operators.Create(ctx, in)
		if err != nil {
			log.Fatalf("Failed to create operator: %v", err)
		}
		fmt.Printf("Created operator %s (ID: %d)\n", op.Username, op.ID)

	case "deactivate":
		if len(os.Args) < 3 {
			fmt.Println("Usage: go run ./cmd/admin deactivate <username>")
			os.Exit(1)
		}
		if err := operators.Deactivate(ctx, os.Args[2]); err != nil {
			log.Fatalf("Failed to deactivate operator: %v", err)
		}
		fmt.Printf("Operator %s can no longer sign in\n", os.Args[2])

	case "list":
		list, err := operators.List(ctx)
		if err != nil {
			log.Fatalf("Failed to fetch operators: %v", err)
		}
		printOperators(list)

	case "seed":
		fs := flag.NewFlagSet("seed", flag.ExitOnError)
		file := fs.String("file", "operators.yml", "YAML file listing operators")
		_ = fs.Parse(os.Args[2:])

		entries, err := loadOperatorFile(*file)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", *file, err)
		}
		created, skipped, err := seedOperators(ctx, repo, operators, entries)
		if err != nil {
			log.Fatalf("Seeding stopped: %v", err)
		}
		fmt.Printf("Operators created: %d, already present: %d\n", created, skipped)

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

// operatorEntry is one item of the operators file:
//
//	operators:
//	  - username: principal
//	    password: Change-Me-Now-1
//	    display_name: Principal
//	    email: principal@college.example
type operatorEntry struct {
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	DisplayName string `yaml:"display_name"`
	Email       string `yaml:"email"`
}

type operatorFile struct {
	Operators []operatorEntry `yaml:"operators"`
}

func loadOperatorFile(path string) ([]operatorEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseOperatorFile(data)
}

func parseOperatorFile(data []byte) ([]operatorEntry, error) {
	var f operatorFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid operators file: %w", err)
	}
	for i, e := range f.Operators {
		if e.Username == "" || e.Password == "" {
			return nil, fmt.Errorf("operator %d: username and password are required", i+1)
		}
	}
	return f.Operators, nil
}

// seedOperators creates every entry that does not exist yet.
func seedOperators(ctx context.Context, repo repository.OperatorRepository, operators *service.OperatorService, entries []operatorEntry) (created, skipped int, err error) {
	for _, e := range entries {
		if _, err := repo.GetByUsername(ctx, strings.ToLower(strings.TrimSpace(e.Username))); err == nil {
			skipped++
			continue
		} else if !models.IsCode(err, models.CodeNotFound) {
			return created, skipped, err
		}
		if _, err := operators.Create(ctx, service.CreateOperatorInput{
			Username:    e.Username,
			Password:    e.Password,
			DisplayName: e.DisplayName,
			Email:       e.Email,
		}); err != nil {
			return created, skipped, fmt.Errorf("%s: %w", e.Username, err)
		}
		created++
	}
	return created, skipped, nil
}

func printOperators(list []models.Operator) {
	if len(list) == 0 {
		fmt.Println("No operators found")
		return
	}
	fmt.Println("─────────────────────────────────────")
	for _, op := range list {
		state := "active"
		if !op.IsActive {
			state = "disabled"
		}
		fmt.Printf("ID: %d | Username: %s | Name: %s | %s\n", op.ID, op.Username, op.DisplayName, state)
	}
	fmt.Println("─────────────────────────────────────")
}
