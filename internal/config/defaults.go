package config

const (
	defaultDataDir             = "data"
	defaultRulesDir            = "config"
	defaultStyleHistoryDays    = 60
	defaultPolishBaseURL       = "https://api.openai.com/v1/chat/completions"
	defaultPolishModel         = "gpt-4o-mini"
	defaultPolishTimeout       = 60
	defaultPolishTemperature   = 0.4
	defaultPolishAttempts      = 5
	defaultDiscordAPIBaseURL   = "https://discord.com/api/v10"
	defaultDiscordMessageLimit = 80
	defaultDiscordTimeout      = 20
	defaultDiscordStateFile    = "archive/approvals/discord_publish_gate.json"
	defaultYouTubeUploadURL    = "https://www.googleapis.com/upload/youtube/v3/videos"
	defaultYouTubePrivacy      = "private"
	defaultYouTubeCategoryID   = "20"
	defaultYouTubeTimeout      = 90
	defaultYouTubeTokenPath    = "~/.config/loreforge/youtube_token.json"
	defaultRegistryBackend     = "json"
	defaultRegistryJSONFile    = "archive/publish_registry.json"
	defaultRegistrySQLiteFile  = "archive/publish_registry.db"
	defaultSMTPPort            = 587
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

var defaultReferenceCandidates = []string{"reference/active", "reference/srd5.1"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			RulesDir: defaultRulesDir,
		},
		Reference: Reference{
			Candidates: append([]string(nil), defaultReferenceCandidates...),
		},
		Pipeline: Pipeline{
			AdvisoryLock:       true,
			StyleHistoryDays:   defaultStyleHistoryDays,
			WeakCreatureFilter: true,
		},
		Polish: Polish{
			BaseURL:        defaultPolishBaseURL,
			Model:          defaultPolishModel,
			TimeoutSeconds: defaultPolishTimeout,
			Temperature:    defaultPolishTemperature,
			MaxAttempts:    defaultPolishAttempts,
		},
		Discord: Discord{
			APIBaseURL:     defaultDiscordAPIBaseURL,
			MessageLimit:   defaultDiscordMessageLimit,
			RequestTimeout: defaultDiscordTimeout,
		},
		YouTube: YouTube{
			UploadURL:      defaultYouTubeUploadURL,
			Privacy:        defaultYouTubePrivacy,
			CategoryID:     defaultYouTubeCategoryID,
			RequestTimeout: defaultYouTubeTimeout,
			TokenPath:      defaultYouTubeTokenPath,
		},
		Publish: Publish{
			RegistryBackend: defaultRegistryBackend,
		},
		Email: Email{
			SMTPPort: defaultSMTPPort,
			StartTLS: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
