package config

// Defaults returns the baseline configuration; Load overlays the file on
// top of it.
func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:             "info",
			MaxConcurrentUpdates: 10,
		},
		Telegram: TelegramConfig{
			ParseMode: "HTML",
		},
		Merchant: MerchantConfig{
			APIBase:            "http://127.0.0.1:8000/zenithion/api/v1/",
			TimeoutSeconds:     10,
			InfoTimeoutSeconds: 5,
		},
		Webhook: WebhookConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Path: "/webhook",
		},
		Directory: DirectoryConfig{
			TokensFile: "api_tokens.json",
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
		},
	}
}
