package config

// APIConfig defines settings for the HTTP admin API. An empty address
// disables the server.
type APIConfig struct {
	Addr string `json:"addr"`
	// Token guards the audit log endpoint when non-empty.
	Token string `json:"token"`
}
