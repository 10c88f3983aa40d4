package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"alfie/internal/infra"
	"alfie/internal/quota"
)

// Operator tool for the quota ledger: inspect an account's balance or credit
// purchased units. Billing integration happens elsewhere; this is the manual
// escape hatch.
func main() {
	var (
		accountFlag string
		creditFlag  int
		showFlag    bool
	)

	flag.StringVar(&accountFlag, "account", "", "account ID (UUID)")
	flag.IntVar(&creditFlag, "credit", 0, "units to add to the current period's allotment")
	flag.BoolVar(&showFlag, "show", false, "print the current balance and exit")
	flag.Parse()

	accountID := strings.TrimSpace(accountFlag)
	if accountID == "" {
		exitWithError(errors.New("-account is required"))
	}
	if creditFlag <= 0 && !showFlag {
		exitWithError(errors.New("either -credit or -show must be provided"))
	}

	_ = godotenv.Load()
	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger(os.Getenv("APP_ENV"), "quota-cli")
	runner := infra.NewSQLRunner(pool, logger)
	ledger := quota.NewLedger(runner, logger, 1, 1)

	if creditFlag > 0 {
		b, err := ledger.Credit(ctx, accountID, creditFlag)
		if err != nil {
			exitWithError(fmt.Errorf("credit quota: %w", err))
		}
		fmt.Printf("credited %d units: total=%d consumed=%d remaining=%d\n",
			creditFlag, b.TotalUnits, b.ConsumedUnits, b.Remaining())
		return
	}

	b, err := ledger.Balance(ctx, accountID)
	if err != nil {
		exitWithError(fmt.Errorf("read balance: %w", err))
	}
	fmt.Printf("account=%s period=%s total=%d consumed=%d remaining=%d fraction=%.2f\n",
		b.AccountID, b.PeriodStart.Format("2006-01-02"), b.TotalUnits, b.ConsumedUnits, b.Remaining(), b.Fraction())
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
