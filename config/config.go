package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Host       string  `mapstructure:"host"`
	DBName     string  `mapstructure:"dbname"`
	UserDB     string  `mapstructure:"userdb"`
	PasswordDB string  `mapstructure:"passworddb"`
	Admins     []int64 `mapstructure:"admins"`
	TgApiToken string  `mapstructure:"tg_api_token"`
	WebAddr    string  `mapstructure:"web_addr"`

	// How often the role-sync worker sweeps the outbox, e.g. "30s".
	SyncEvery string `mapstructure:"sync_every"`

	Tags     TagsConfig     `mapstructure:"tags"`
	Platform PlatformConfig `mapstructure:"platform"`
	Identity IdentityConfig `mapstructure:"identity"`
}

// TagsConfig names the league role tags on the community platform.
type TagsConfig struct {
	Captain      string `mapstructure:"captain"`
	ViceCaptain  string `mapstructure:"vice_captain"`
	CourtCaptain string `mapstructure:"court_captain"`
	Player       string `mapstructure:"player"`
	Referee      string `mapstructure:"referee"`
	Media        string `mapstructure:"media"`
}

// PlatformConfig points at the community platform's member-tag API.
type PlatformConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
}

// IdentityConfig points at the Roblox endpoints used to decorate
// notifications with a profile link and avatar.
type IdentityConfig struct {
	UsersURL      string `mapstructure:"users_url"`
	ThumbnailsURL string `mapstructure:"thumbnails_url"`
}

func InitConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")

	viper.SetDefault("web_addr", ":8080")
	viper.SetDefault("sync_every", "30s")
	viper.SetDefault("tags.captain", "Captain")
	viper.SetDefault("tags.vice_captain", "Vice Captain")
	viper.SetDefault("tags.court_captain", "Court Captain")
	viper.SetDefault("tags.player", "Player")
	viper.SetDefault("tags.referee", "Referee")
	viper.SetDefault("tags.media", "Media")
	viper.SetDefault("identity.users_url", "https://users.roblox.com/v1/usernames/users")
	viper.SetDefault("identity.thumbnails_url", "https://thumbnails.roblox.com/v1/users/avatar-headshot")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, fmt.Errorf("config file is not found: %w", err)
		}
		return nil, fmt.Errorf("init config: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if cfg.TgApiToken == "" {
		return nil, fmt.Errorf("tg_api_token is not configured")
	}
	return &cfg, nil
}
