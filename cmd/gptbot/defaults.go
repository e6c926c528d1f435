package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	// OpenAI Assistants API
	viper.SetDefault("openai.base_url", "https://api.openai.com")
	viper.SetDefault("openai.api_key", "")
	viper.SetDefault("openai.request_timeout", 90*time.Second)
	viper.SetDefault("openai.default_model", "gpt-4o")

	// Discord
	viper.SetDefault("discord.bot_token", "")
	viper.SetDefault("discord.client_id", "")
	viper.SetDefault("discord.allowed_guild_ids", []string{})

	// Chat threads
	viper.SetDefault("chat.max_chars", 1500)
	viper.SetDefault("chat.poll_interval", 1*time.Second)
	viper.SetDefault("chat.run_timeout", 10*time.Minute)
	viper.SetDefault("chat.inline_math", false)

	// Formula rendering
	viper.SetDefault("latex.render_url", "https://latex.codecogs.com/png.latex")
	viper.SetDefault("latex.dpi", 160)

	// Attachment intake per tool capability.
	viper.SetDefault("files.search_extensions", []string{
		".c", ".cpp", ".css", ".docx", ".go", ".html", ".java", ".js",
		".json", ".md", ".pdf", ".php", ".pptx", ".py", ".rb", ".sh",
		".tex", ".ts", ".txt",
	})
	viper.SetDefault("files.code_extensions", []string{
		".c", ".cpp", ".csv", ".docx", ".go", ".html", ".java", ".js",
		".json", ".md", ".pdf", ".php", ".pkl", ".png", ".pptx", ".py",
		".rb", ".sh", ".tar", ".tex", ".ts", ".txt", ".xlsx", ".xml",
		".zip",
	})

	// Interactive prompts
	viper.SetDefault("assistants.list_limit", 20)
	viper.SetDefault("prompt.timeout", 180*time.Second)

	// Logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.add_source", false)
}
