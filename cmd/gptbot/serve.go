package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/KeioAIConsortium/gpt-discord-bot/internal/assistant"
	"github.com/KeioAIConsortium/gpt-discord-bot/internal/channelruntime/discord"
	"github.com/KeioAIConsortium/gpt-discord-bot/internal/logutil"
	"github.com/KeioAIConsortium/gpt-discord-bot/internal/mathspan"
	"github.com/KeioAIConsortium/gpt-discord-bot/internal/render"
	"github.com/KeioAIConsortium/gpt-discord-bot/internal/texrender"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Discord gateway loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			botToken := strings.TrimSpace(flagOrViperString(cmd, "discord-bot-token", "discord.bot_token"))
			if botToken == "" {
				return fmt.Errorf("missing discord.bot_token (set via --discord-bot-token or %s_DISCORD_BOT_TOKEN)", envPrefix)
			}
			apiKey := strings.TrimSpace(flagOrViperString(cmd, "openai-api-key", "openai.api_key"))
			if apiKey == "" {
				return fmt.Errorf("missing openai.api_key (set via --openai-api-key or %s_OPENAI_API_KEY)", envPrefix)
			}

			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			client := assistant.New(
				viper.GetString("openai.base_url"),
				apiKey,
				viper.GetDuration("openai.request_timeout"),
			)
			driver, err := assistant.NewDriver(assistant.DriverOptions{
				API:          client,
				Logger:       logger,
				PollInterval: viper.GetDuration("chat.poll_interval"),
				RunTimeout:   viper.GetDuration("chat.run_timeout"),
			})
			if err != nil {
				return err
			}
			var rasterizer mathspan.Rasterizer
			if url := strings.TrimSpace(viper.GetString("latex.render_url")); url != "" {
				rasterizer = texrender.New(nil, url, viper.GetInt("latex.dpi"))
			}
			renderer, err := render.New(render.Options{
				Fetcher:    client,
				Rasterizer: rasterizer,
				Logger:     logger,
				InlineMath: viper.GetBool("chat.inline_math"),
				Limit:      viper.GetInt("chat.max_chars"),
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return discord.Run(ctx, discord.RunOptions{
				BotToken:                  botToken,
				ClientID:                  viper.GetString("discord.client_id"),
				AllowedGuildIDs:           viper.GetStringSlice("discord.allowed_guild_ids"),
				DefaultModel:              viper.GetString("openai.default_model"),
				AssistantListLimit:        viper.GetInt("assistants.list_limit"),
				PromptTimeout:             viper.GetDuration("prompt.timeout"),
				SearchExtensions:          viper.GetStringSlice("files.search_extensions"),
				CodeInterpreterExtensions: viper.GetStringSlice("files.code_extensions"),
				Logger:                    logger,
				Client:                    client,
				Driver:                    driver,
				Renderer:                  renderer,
			})
		},
	}

	cmd.Flags().String("discord-bot-token", "", "Discord bot token.")
	cmd.Flags().String("openai-api-key", "", "OpenAI API key.")
	return cmd
}
