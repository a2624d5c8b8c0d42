package main

import (
	_ "embed"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/punchamoorthee/payflow/internal/client"
	"github.com/punchamoorthee/payflow/internal/domain"
)

//go:embed catalog.toml
var defaultCatalog string

type catalog struct {
	Services []entry `toml:"service"`
}

type entry struct {
	ServiceID   string          `toml:"service_id"`
	Name        string          `toml:"name"`
	Description string          `toml:"description"`
	BasePrice   decimal.Decimal `toml:"base_price"`
}

func (e entry) definition() domain.ServiceDefinition {
	return domain.ServiceDefinition{ServiceID: e.ServiceID, Name: e.Name, Description: e.Description, BasePrice: e.BasePrice}
}

var (
	targetURL   string
	catalogFile string
	timeout     time.Duration
)

func main() {
	cmd := &cobra.Command{
		Use:           "seeder",
		Short:         "Register the service catalog with a running payment service",
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().StringVar(&targetURL, "url", envOr("PAYMENT_SERVICE_URL", "http://localhost:8000"), "payment service base URL")
	cmd.Flags().StringVar(&catalogFile, "catalog", "", "TOML catalog file (defaults to the built-in catalog)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "per-request timeout")

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func loadCatalog() (catalog, error) {
	var c catalog
	if catalogFile == "" {
		_, err := toml.Decode(defaultCatalog, &c)
		return c, err
	}
	_, err := toml.DecodeFile(catalogFile, &c)
	return c, err
}

func run(cmd *cobra.Command, _ []string) error {
	c, err := loadCatalog()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	log.Println("--- Seeding Service Catalog ---")

	pc := client.NewPaymentClient(targetURL, timeout)
	ctx := cmd.Context()
	var created, skipped int
	for _, e := range c.Services {
		def := e.definition()
		_, err := pc.RegisterService(ctx, def)
		switch {
		case err == nil:
			created++
			log.Printf("Registered %s (%s) at %s", def.ServiceID, def.Name, def.BasePrice.StringFixed(2))
		case client.IsStatus(err, http.StatusConflict):
			skipped++
			log.Printf("Service %s already registered. Skipping.", def.ServiceID)
		default:
			return fmt.Errorf("register %s: %w", def.ServiceID, err)
		}
	}

	log.Printf("Seeded %d services, %d already present.", created, skipped)
	return nil
}
