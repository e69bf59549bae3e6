package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"clicksprout/internal/auth"
	"clicksprout/internal/config"
	"clicksprout/internal/store"
	"clicksprout/models"

	"golang.org/x/crypto/bcrypt"
)

var defaultTemplates = []models.TemplateRecord{
	{
		Name:          "Product launch",
		Category:      "launch",
		TitleTemplate: "Just dropped: {{title}}",
		BodyTemplate:  "{{title}} is here. {{description}} Grab yours: {{url}}",
		Hashtags:      []string{"#NewArrival", "#JustLaunched"},
	},
	{
		Name:          "Flash deal",
		Category:      "promotion",
		TitleTemplate: "{{title}} for {{price}}",
		BodyTemplate:  "Today only: {{title}} for {{price}}. {{description}}",
		Hashtags:      []string{"#Deal", "#Sale"},
	},
	{
		Name:          "Instagram showcase",
		Platform:      models.PlatformInstagram,
		Category:      "showcase",
		TitleTemplate: "{{title}}",
		BodyTemplate:  "Meet {{title}}. {{description}}\n\nLink in bio.",
		Hashtags:      []string{"#InstaShop", "#ShopSmall"},
	},
	{
		Name:          "Reddit discussion",
		Platform:      models.PlatformReddit,
		Category:      "discussion",
		TitleTemplate: "Has anyone tried {{title}}?",
		BodyTemplate:  "Found {{title}} ({{price}}). {{description}} Worth it? {{url}}",
	},
}

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Print a hash for OPERATOR_PASSWORD_HASH when a password is given
	if password := os.Getenv("OPERATOR_PASSWORD"); password != "" {
		hash, err := auth.HashPassword(password, bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}
		fmt.Printf("OPERATOR_PASSWORD_HASH=%s\n", hash)
	}

	if cfg.StoreBackend != "mongo" {
		fmt.Println("STORE_BACKEND is not mongo, nothing to seed")
		return
	}

	backend, closeStore, err := store.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	defer closeStore(context.Background())

	templates := store.NewRepositories(backend).Templates
	existing, err := templates.List(ctx, "", "")
	if err != nil {
		log.Fatalf("Failed to list templates: %v", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, tpl := range existing {
		seen[tpl.Name] = true
	}

	created := 0
	for _, tpl := range defaultTemplates {
		if seen[tpl.Name] {
			fmt.Printf("Template %q already exists\n", tpl.Name)
			continue
		}
		tpl := tpl
		if err := templates.Create(ctx, &tpl); err != nil {
			log.Fatalf("Failed to create template %q: %v", tpl.Name, err)
		}
		created++
	}
	fmt.Printf("Seeded %d templates\n", created)
}
