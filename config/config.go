package config

import (
	"time"

	"github.com/pitabwire/frame/config"
)

// RelayConfig holds configuration for the profilebot relay service.
type RelayConfig struct {
	config.ConfigurationDefault

	// Dialogs
	DialogDir     string `envDefault:"./dialogs"    env:"DIALOG_DIR"`
	DefaultDialog string `envDefault:"user-profile" env:"DEFAULT_DIALOG"`

	// Direct Line
	DirectLineSecret string        `envDefault:""            env:"DIRECT_LINE_SECRET"`
	TokenSigningKey  string        `envDefault:""            env:"TOKEN_SIGNING_KEY"`
	TokenTTL         time.Duration `envDefault:"30m"         env:"TOKEN_TTL"`
	ConversationTTL  time.Duration `envDefault:"1h"          env:"CONVERSATION_TTL"`
	ReaperInterval   time.Duration `envDefault:"1m"          env:"REAPER_INTERVAL"`
	BotID            string        `envDefault:"profilebot"  env:"BOT_ID"`
	BotName          string        `envDefault:"Profile Bot" env:"BOT_NAME"`

	// State
	RedisURL string        `envDefault:""    env:"REDIS_URL"`
	StateTTL time.Duration `envDefault:"24h" env:"STATE_TTL"`

	// ProfileStore selects "database" (the frame datastore) or "memory".
	ProfileStore string `envDefault:"database" env:"PROFILE_STORE"`

	// LogEvents writes every emitted event to the service log.
	LogEvents bool `envDefault:"false" env:"LOG_EVENTS"`

	// Hooks
	HooksAllowPrivateIPs bool          `envDefault:"false" env:"HOOKS_ALLOW_PRIVATE_IPS"`
	HookCBFailThreshold  int           `envDefault:"5"     env:"HOOK_CB_FAILURE_THRESHOLD"`
	HookCBResetTimeout   time.Duration `envDefault:"60s"   env:"HOOK_CB_RESET_TIMEOUT"`
}

// UseDatabaseProfiles reports whether profiles are persisted via the datastore.
func (c *RelayConfig) UseDatabaseProfiles() bool {
	return c.ProfileStore == "database"
}

// ClientConfig holds configuration for the relaychat terminal client.
type ClientConfig struct {
	DirectLineSecret string        `env:"DIRECT_LINE_SECRET"`
	Endpoint         string        `env:"DIRECT_LINE_ENDPOINT" envDefault:"https://directline.botframework.com/v3/directline/conversations"`
	UserID           string        `env:"DIRECT_LINE_USER_ID"  envDefault:"user1"`
	PollInterval     time.Duration `env:"POLL_INTERVAL"        envDefault:"500ms"`
	HTTPTimeout      time.Duration `env:"HTTP_TIMEOUT"         envDefault:"10s"`
	LogLevel         string        `env:"LOG_LEVEL"            envDefault:"warn"`
}
