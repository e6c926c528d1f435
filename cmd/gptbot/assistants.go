package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/KeioAIConsortium/gpt-discord-bot/internal/assistant"
	"github.com/KeioAIConsortium/gpt-discord-bot/internal/assistantdef"
)

func newAssistantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assistants",
		Short: "Manage remote assistant definitions",
	}
	cmd.AddCommand(newAssistantsCreateCmd())
	cmd.AddCommand(newAssistantsListCmd())
	cmd.AddCommand(newAssistantsGetCmd())
	cmd.AddCommand(newAssistantsUpdateCmd())
	cmd.AddCommand(newAssistantsDeleteCmd())
	return cmd
}

func assistantClientFromViper() (*assistant.Client, error) {
	apiKey := strings.TrimSpace(viper.GetString("openai.api_key"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing openai.api_key (set %s_OPENAI_API_KEY)", envPrefix)
	}
	return assistant.New(
		viper.GetString("openai.base_url"),
		apiKey,
		viper.GetDuration("openai.request_timeout"),
	), nil
}

func commandContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	return ctx, func() {
		cancel()
		stop()
	}
}

func newAssistantsCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <definition.md>",
		Short: "Create an assistant from a definition file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := assistantClientFromViper()
			if err != nil {
				return err
			}
			def, err := assistantdef.LoadFile(args[0])
			if err != nil {
				return err
			}
			params := def.CreateParams()
			if params.Model == "" {
				params.Model = viper.GetString("openai.default_model")
			}
			ctx, cancel := commandContext()
			defer cancel()
			created, err := client.CreateAssistant(ctx, params)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created assistant %s (%s)\n", created.ID, created.Name)
			return nil
		},
	}
	return cmd
}

func newAssistantsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List assistants",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := assistantClientFromViper()
			if err != nil {
				return err
			}
			limit := flagOrViperInt(cmd, "limit", "assistants.list_limit")
			ctx, cancel := commandContext()
			defer cancel()
			assistants, err := client.ListAssistants(ctx, limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tMODEL\tDESCRIPTION")
			for _, a := range assistants {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.ID, a.Name, a.Model, a.Description)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum number of assistants to list.")
	return cmd
}

func newAssistantsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <assistant-id>",
		Short: "Show one assistant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := assistantClientFromViper()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext()
			defer cancel()
			a, err := client.GetAssistant(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:           %s\n", a.ID)
			fmt.Fprintf(out, "Name:         %s\n", a.Name)
			fmt.Fprintf(out, "Model:        %s\n", a.Model)
			fmt.Fprintf(out, "Description:  %s\n", a.Description)
			tools := make([]string, 0, len(a.Tools))
			for _, t := range a.Tools {
				tools = append(tools, string(t.Type))
			}
			fmt.Fprintf(out, "Tools:        %s\n", strings.Join(tools, ", "))
			fmt.Fprintf(out, "Instructions:\n%s\n", a.Instructions)
			return nil
		},
	}
}

func newAssistantsUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <assistant-id> <definition.md>",
		Short: "Update an assistant from a definition file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := assistantClientFromViper()
			if err != nil {
				return err
			}
			def, err := assistantdef.LoadFile(args[1])
			if err != nil {
				return err
			}
			params := def.CreateParams()
			if params.Model == "" {
				params.Model = viper.GetString("openai.default_model")
			}
			ctx, cancel := commandContext()
			defer cancel()
			updated, err := client.UpdateAssistant(ctx, args[0], params)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated assistant %s (%s)\n", updated.ID, updated.Name)
			return nil
		},
	}
}

func newAssistantsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <assistant-id>",
		Short: "Delete an assistant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := assistantClientFromViper()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext()
			defer cancel()
			if err := client.DeleteAssistant(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted assistant %s\n", args[0])
			return nil
		},
	}
}
