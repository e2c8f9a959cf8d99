package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/warp/court-engine/court"
	"github.com/warp/court-engine/identity"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(memberCmd)
	rootCmd.AddCommand(tokenCmd)
	memberCmd.AddCommand(memberCreateCmd)
	tokenCmd.AddCommand(tokenIssueCmd)

	for _, cmd := range []*cobra.Command{migrateCmd, memberCreateCmd, tokenIssueCmd} {
		cmd.Flags().String("db", "", "SQLite database path (overrides db_path)")
	}

	memberCreateCmd.Flags().String("email", "", "Login email (required)")
	memberCreateCmd.Flags().String("first", "", "First name")
	memberCreateCmd.Flags().String("last", "", "Last name")
	memberCreateCmd.Flags().String("password", "", "Login password (required)")
	memberCreateCmd.Flags().String("role", string(court.RoleMember), "member or admin")
	memberCreateCmd.Flags().Int64("balance", 0, "Opening top-up in minor units")
	memberCreateCmd.MarkFlagRequired("email")
	memberCreateCmd.MarkFlagRequired("password")

	tokenIssueCmd.Flags().String("email", "", "Member email (required)")
	tokenIssueCmd.MarkFlagRequired("email")
}

// ─── migrate ────────────────────────────────────────────────────────────────

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, err := dbPath(cmd)
		if err != nil {
			return err
		}
		store, err := openStore(path)
		if err != nil {
			return err
		}
		defer store.Close()
		fmt.Fprintf(os.Stdout, "Schema up to date: %s\n", path)
		return nil
	},
}

// ─── member create ──────────────────────────────────────────────────────────

var memberCmd = &cobra.Command{
	Use:   "member",
	Short: "Manage members",
}

var memberCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a member",
	RunE:  runMemberCreate,
}

func runMemberCreate(cmd *cobra.Command, _ []string) error {
	path, err := dbPath(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	email, _ := flags.GetString("email")
	first, _ := flags.GetString("first")
	last, _ := flags.GetString("last")
	password, _ := flags.GetString("password")
	role, _ := flags.GetString("role")
	balance, _ := flags.GetInt64("balance")

	store, err := openStore(path)
	if err != nil {
		return err
	}
	defer store.Close()

	hash, err := identity.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	ctx := context.Background()
	m, err := court.RegisterMember(ctx, store, court.NewMember{
		FirstName:    first,
		LastName:     last,
		Email:        email,
		PasswordHash: hash,
		Role:         court.Role(role),
	})
	if err != nil {
		return err
	}
	if balance != 0 {
		if m.Balance, err = court.NewLedger(store).TopUp(ctx, m.ID, court.Amount(balance)); err != nil {
			return fmt.Errorf("opening top-up: %w", err)
		}
	}

	fmt.Fprintf(os.Stdout, "Member %s created: %s <%s> role=%s balance=%s\n",
		m.ID, m.Name(), m.Email, m.Role, m.Balance)
	return nil
}

// ─── token issue ────────────────────────────────────────────────────────────

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage bearer tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Print a bearer token for a member",
	RunE:  runTokenIssue,
}

func runTokenIssue(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flags := cmd.Flags(); flags.Changed("db") {
		cfg.DBPath, _ = flags.GetString("db")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}
	email, _ := cmd.Flags().GetString("email")

	store, err := openStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	m, err := store.GetMemberByEmail(context.Background(), court.NormalizeEmail(email))
	if err != nil {
		return err
	}
	token, err := identity.NewTokens(cfg.JWTSecret, cfg.TokenTTL.Duration).Issue(m)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, token)
	return nil
}

// dbPath resolves the database path from config and the --db flag.
func dbPath(cmd *cobra.Command) (string, error) {
	if cmd.Flags().Changed("db") {
		return cmd.Flags().GetString("db")
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	return cfg.DBPath, nil
}
