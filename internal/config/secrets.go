package config

// redactedPlaceholder replaces secret values in log output.
const redactedPlaceholder = "[REDACTED]"

// Redacted returns a copy of the config with secrets masked, safe for
// logging at startup.
func (c *Config) Redacted() Config {
	out := *c

	if out.Kalshi.KeyPassword != "" {
		out.Kalshi.KeyPassword = redactedPlaceholder
	}
	if out.Postgres.DSN != "" {
		out.Postgres.DSN = redactedPlaceholder
	}
	if out.Postgres.Password != "" {
		out.Postgres.Password = redactedPlaceholder
	}
	if out.Redis.Password != "" {
		out.Redis.Password = redactedPlaceholder
	}
	if out.S3.AccessKey != "" {
		out.S3.AccessKey = redactedPlaceholder
	}
	if out.S3.SecretKey != "" {
		out.S3.SecretKey = redactedPlaceholder
	}
	if out.Notify.TelegramToken != "" {
		out.Notify.TelegramToken = redactedPlaceholder
	}
	if out.Notify.DiscordWebhookURL != "" {
		out.Notify.DiscordWebhookURL = redactedPlaceholder
	}
	return out
}
