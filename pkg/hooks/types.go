package hooks

// HookConfig describes how to call an external hook endpoint.
type HookConfig struct {
	URL        string            `yaml:"url"         json:"url"`
	AuthType   string            `yaml:"auth_type"   json:"auth_type"`   // "bearer", "hmac", "none"
	AuthSecret string            `yaml:"auth_secret" json:"auth_secret"` // token or HMAC key
	TimeoutSec int               `yaml:"timeout_sec" json:"timeout_sec"`
	Headers    map[string]string `yaml:"headers"     json:"headers,omitempty"`
}

// CompletionRequest is posted to a dialog's on_complete hook after the
// collected profile has been saved.
type CompletionRequest struct {
	SessionID string            `json:"session_id"`
	Dialog    string            `json:"dialog"`
	Fields    map[string]string `json:"fields"`
}

// HookResponse is the optional body returned by a hook endpoint.
type HookResponse struct {
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}
