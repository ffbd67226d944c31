// Command admintoken generates an operator token for the admin routes and,
// optionally, assigns a plan to a profile directly in the database.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/humanizer/humanizer/internal/auth"
	"github.com/humanizer/humanizer/internal/model"
	"github.com/humanizer/humanizer/internal/repository"
	"github.com/humanizer/humanizer/internal/service"
)

type output struct {
	Token string `json:"token"`
	Hash  string `json:"hash"`
	Env   string `json:"env"`

	UserID  string `json:"user_id,omitempty"`
	Plan    string `json:"plan,omitempty"`
	Credits *int   `json:"credits,omitempty"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string (only needed with -user-id)")
		userID      = flag.String("user-id", "", "Profile to assign -plan to")
		plan        = flag.String("plan", "", "Plan for -user-id: free, pro or premium")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	generated, err := auth.GenerateAdminToken()
	if err != nil {
		fmt.Fprintln(os.Stderr, "generate admin token:", err)
		os.Exit(1)
	}

	out := output{
		Token: generated.Plaintext,
		Hash:  generated.Hash,
		Env:   "ADMIN_TOKEN_HASH=" + generated.Hash,
	}

	if *userID != "" {
		p, err := assignPlan(*databaseURL, *userID, *plan)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		out.UserID = p.ID
		out.Plan = string(p.Plan)
		out.Credits = &p.Credits
	}

	if err := write(os.Stdout, *format, out); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func assignPlan(databaseURL, userID, plan string) (*model.Profile, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required with -user-id")
	}
	if strings.TrimSpace(plan) == "" {
		return nil, errors.New("-plan is required with -user-id")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	defer repo.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	p, err := service.NewLedger(repo, logger).ChangePlan(ctx, userID, model.Plan(plan))
	if err != nil {
		return nil, fmt.Errorf("assign plan: %w", err)
	}
	return p, nil
}

func write(w io.Writer, format string, out output) error {
	switch strings.ToLower(format) {
	case "plain":
		fmt.Fprintln(w, "token:", out.Token)
		fmt.Fprintln(w, out.Env)
		if out.UserID != "" {
			fmt.Fprintf(w, "profile %s: plan=%s credits=%s\n", out.UserID, out.Plan, creditsLabel(*out.Credits))
		}
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	default:
		return fmt.Errorf("invalid format %q; use plain or json", format)
	}
}

func creditsLabel(credits int) string {
	if credits == model.UnlimitedCredits {
		return "unlimited"
	}
	return fmt.Sprint(credits)
}
