package stream

import "time"

// Config holds the tunables of a Client. A zero HeartbeatInterval or an empty
// ChannelIDPrefix falls back to DefaultConfig; zero timeouts disable the
// timeout.
type Config struct {
	// HeartbeatInterval is the period between ping frames.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`

	// HandshakeTimeout bounds Connect's dial. Zero waits on the caller's context.
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`

	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// ReadTimeout, when set, drops connections that stay silent for longer
	// (pongs count as traffic).
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// ChannelIDPrefix prefixes generated subscription ids.
	ChannelIDPrefix string `mapstructure:"channel_id_prefix"`

	Compression bool `mapstructure:"compression"`

	// Proxy is an optional SOCKS5 proxy address (host:port).
	Proxy string `mapstructure:"proxy"`
}

func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 30 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		WriteTimeout:      10 * time.Second,
		ChannelIDPrefix:   "ch",
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = def.HeartbeatInterval
	}
	if c.ChannelIDPrefix == "" {
		c.ChannelIDPrefix = def.ChannelIDPrefix
	}
	return c
}
