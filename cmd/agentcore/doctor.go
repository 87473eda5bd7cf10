package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/agentcore/internal/providers"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "check store connectivity, provider health, and system lockdown state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer closeApp(a)

			ctx := cmd.Context()
			ok := true

			if standalone || cfg.Database.PostgresDSN == "" {
				fmt.Println("store:       in-memory (--standalone or no AGENTCORE_POSTGRES_DSN)")
			} else if err := a.db.PingContext(ctx); err != nil {
				fmt.Printf("store:       FAIL postgres ping: %v\n", err)
				ok = false
			} else {
				fmt.Println("store:       ok postgres")
			}

			ok = reportProviderHealth(ctx, a.primary, "provider primary") && ok
			ok = reportProviderHealth(ctx, a.fallback, "provider fallback") && ok

			sys, err := a.stores.SystemState.Get(ctx)
			if err != nil {
				fmt.Printf("lockdown:    FAIL read system state: %v\n", err)
				ok = false
			} else if sys.Lockdown {
				fmt.Println("lockdown:    ENGAGED")
				ok = false
			} else if sys.Restarting {
				fmt.Println("lockdown:    restarting")
			} else {
				fmt.Println("lockdown:    clear")
			}

			if !ok {
				return fmt.Errorf("doctor: one or more checks failed")
			}
			fmt.Println("all checks passed")
			return nil
		},
	}
}

func reportProviderHealth(ctx context.Context, p providers.Provider, label string) bool {
	if err := p.HealthCheck(ctx); err != nil {
		fmt.Printf("%s: FAIL %v\n", label, err)
		return false
	}
	fmt.Printf("%s: ok\n", label)
	return true
}
