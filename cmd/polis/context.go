package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/polisai/polis-oss/internal/usercontext"
)

func contextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Manage named control-plane endpoints",
	}
	cmd.AddCommand(contextListCmd())
	cmd.AddCommand(contextCurrentCmd())
	cmd.AddCommand(contextUseCmd())
	cmd.AddCommand(contextAddCmd())
	cmd.AddCommand(contextDeleteCmd())
	return cmd
}

func contextListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every known context",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadUserConfig()
			if err != nil {
				return err
			}
			infos := cfg.List()
			if jsonOutput {
				return printJSON(infos)
			}
			for _, info := range infos {
				marker := " "
				if info.Current {
					marker = "*"
				}
				fmt.Printf("%s %-20s %s\n", marker, info.Name, info.URL)
			}
			return nil
		},
	}
}

func contextCurrentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Print the active context's name",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadUserConfig()
			if err != nil {
				return err
			}
			fmt.Println(cfg.CurrentName())
			return nil
		},
	}
}

func contextUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <name>",
		Short: "Switch the active context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadUserConfig()
			if err != nil {
				return err
			}
			if err := cfg.SetCurrent(args[0]); err != nil {
				return err
			}
			if err := usercontext.Save(cfg, userConfigPath); err != nil {
				return err
			}
			fmt.Printf("switched to context %q\n", args[0])
			return nil
		},
	}
}

func contextAddCmd() *cobra.Command {
	var url, apiKey, description string
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a new control-plane endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				return fmt.Errorf("--url is required")
			}
			cfg, err := loadUserConfig()
			if err != nil {
				return err
			}
			cfg.AddContext(usercontext.Context{
				Name:        args[0],
				URL:         url,
				APIKey:      apiKey,
				Description: description,
			})
			if err := usercontext.Save(cfg, userConfigPath); err != nil {
				return err
			}
			fmt.Printf("added context %q\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "control-plane base URL")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "bearer token for this context")
	cmd.Flags().StringVar(&description, "description", "", "human-readable description")
	return cmd
}

func contextDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Remove a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadUserConfig()
			if err != nil {
				return err
			}
			if !cfg.RemoveContext(args[0]) {
				return fmt.Errorf("context %q not found", args[0])
			}
			if err := usercontext.Save(cfg, userConfigPath); err != nil {
				return err
			}
			fmt.Printf("deleted context %q\n", args[0])
			return nil
		},
	}
}
