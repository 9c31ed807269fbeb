// Command example is a small, hand-run demonstration of pkg/odooclient
// against a live Odoo instance: connect, search, read, and create, the same
// shape of walkthrough a new integrator would run first.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/config"
	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/odooclient"
)

func main() {
	odooURL := os.Getenv("ODOO_URL")
	odooDB := os.Getenv("ODOO_DB")
	odooUsername := os.Getenv("ODOO_USERNAME")
	odooPassword := os.Getenv("ODOO_PASSWORD")

	if odooURL == "" || odooUsername == "" || odooPassword == "" {
		log.Fatal("Error: ODOO_URL, ODOO_USERNAME, and ODOO_PASSWORD must be set.\n" +
			"Example:\n" +
			"  export ODOO_URL=\"https://your-odoo-instance.com\"\n" +
			"  export ODOO_DB=\"your_odoo_database\"\n" +
			"  export ODOO_USERNAME=\"your_odoo_user\"\n" +
			"  export ODOO_PASSWORD=\"your_odoo_password\"",
		)
	}

	appLogger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create application Zap logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	cfg := &config.Config{
		URL:          odooURL,
		Database:     odooDB,
		Username:     odooUsername,
		Password:     odooPassword,
		DefaultLimit: 20,
		MaxLimit:     100,
		LogLevel:     "debug",
		Transport:    config.TransportStdio,
	}

	conn, err := odooclient.NewConnection(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize Odoo connection", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := conn.Open(ctx); err != nil {
		appLogger.Fatal("Failed to connect to Odoo", zap.Error(err))
	}
	defer conn.Disconnect()

	fmt.Printf("Connected to %s (server %s)\n", conn.Database(), conn.ServerVersion())

	fmt.Println("\n--- Searching for companies (res.partner where is_company = true) ---")
	companyDomain := odooclient.Domain{
		{"is_company", "=", true},
		{"active", "=", true},
	}
	companyIDs, err := conn.Search(ctx, odooclient.ModelResPartner, companyDomain, nil)
	if err != nil {
		appLogger.Error("search failed", zap.Error(err))
	} else {
		fmt.Printf("Found %d company IDs.\n", len(companyIDs))
		if len(companyIDs) > 0 {
			fields := odooclient.Fields{"name", "email", "phone", "city", "country_id"}
			records, err := conn.Read(ctx, odooclient.ModelResPartner, companyIDs[:1], fields, nil)
			if err != nil {
				appLogger.Error("read failed", zap.Error(err), zap.Int64("id", companyIDs[0]))
			} else if len(records) > 0 {
				fmt.Printf("First company: %+v\n", records[0])
				fmt.Printf("Record URL: %s\n", conn.BuildRecordURL(string(odooclient.ModelResPartner), companyIDs[0]))
			}
		}
	}

	fmt.Println("\n--- Demonstrating a not-found lookup ---")
	missingDomain := odooclient.Domain{{"name", "=", "ThisCompanyDoesNotExist12345"}}
	ids, err := conn.Search(ctx, odooclient.ModelResPartner, missingDomain, nil)
	switch {
	case err != nil:
		appLogger.Error("unexpected search error", zap.Error(err))
	case len(ids) == 0:
		fmt.Println("Confirmed: no matching record (as expected).")
	default:
		fmt.Printf("Unexpectedly found %d matches.\n", len(ids))
	}

	fmt.Println("\n--- Creating and updating a partner ---")
	newPartnerID, err := conn.Create(ctx, odooclient.ModelResPartner, odooclient.Data{
		"name":       "Test Partner from Go",
		"email":      "test.go@example.com",
		"is_company": true,
		"city":       "Valencia",
	}, nil)
	if err != nil {
		appLogger.Error("create failed", zap.Error(err))
		return
	}
	fmt.Printf("Successfully created new partner with ID: %d\n", newPartnerID)

	if err := conn.Write(ctx, odooclient.ModelResPartner, []int64{newPartnerID}, odooclient.Data{
		"name":  "Updated Test Partner from Go",
		"phone": "+1234567890",
	}, nil); err != nil {
		appLogger.Error("update failed", zap.Error(err), zap.Int64("partner_id", newPartnerID))
		return
	}

	updated, err := conn.Read(ctx, odooclient.ModelResPartner, []int64{newPartnerID}, odooclient.Fields{"name", "email", "phone"}, nil)
	if err != nil {
		appLogger.Error("read-back failed", zap.Error(err))
	} else if len(updated) > 0 {
		fmt.Printf("Updated partner details: %+v\n", updated[0])
	}

	fmt.Println("\n--- Demonstrating context timeout ---")
	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 1*time.Millisecond)
	defer timeoutCancel()
	if _, err := conn.Search(timeoutCtx, odooclient.ModelResPartner, odooclient.Domain{{"id", ">", 0}}, nil); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			fmt.Println("Confirmed: operation was cancelled by context, as expected.")
		} else {
			fmt.Printf("Unexpected error: %v\n", err)
		}
	} else {
		fmt.Println("Operation completed before the deadline (unexpected for a 1ms timeout).")
	}

	fmt.Println("\nCleaning up: deleting the partner created above")
	if err := conn.Unlink(ctx, odooclient.ModelResPartner, []int64{newPartnerID}, nil); err != nil {
		appLogger.Error("delete failed", zap.Error(err), zap.Int64("partner_id", newPartnerID))
		return
	}
	fmt.Printf("Deleted partner %s\n", strconv.FormatInt(newPartnerID, 10))
}
