package channels

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Default supervision intervals. The activity timeout may be replaced by a
// server-supplied value during the handshake when not configured explicitly.
const (
	defaultActivityTimeout = 60 * time.Second
	defaultPongTimeout     = 30 * time.Second
	defaultMaxReconnectGap = 120 * time.Second
)

// ClientOptions configures a Client.
type ClientOptions struct {
	// AuthMethod authorizes private and presence channel subscriptions. The
	// zero value rejects such subscriptions with AuthErrorNoMethod.
	AuthMethod AuthMethod

	// AutoReconnect enables reconnection after unplanned closures with
	// non-protocol close codes. Closure codes in the 4000-4999 range are
	// governed by the protocol and ignore this setting.
	AutoReconnect bool

	// Host overrides the default Channels host. Ignored if Cluster is set.
	Host string

	// Cluster shorthand for Host = "ws-{cluster}.pusher.com".
	Cluster string

	// Port overrides the default port (443 with TLS, 80 without).
	Port int

	// Path overrides the default websocket path /app/{key}.
	Path string

	// UseTLS selects wss:// over ws://.
	UseTLS bool

	// ActivityTimeout is the quiet period after which a ping is sent. Zero
	// means use the server-supplied value, falling back to 60s.
	ActivityTimeout time.Duration

	// PongTimeout is how long to wait for a pong before the connection is
	// considered dead. Zero means 30s.
	PongTimeout time.Duration

	// MaxReconnectAttempts caps reconnection attempts. Zero means no cap.
	MaxReconnectAttempts int

	// MaxReconnectGap caps the computed backoff delay. Zero means 120s.
	MaxReconnectGap time.Duration
}

// DefaultOptions returns the options used when none are supplied.
func DefaultOptions() ClientOptions {
	return ClientOptions{
		AutoReconnect:   true,
		UseTLS:          true,
		PongTimeout:     defaultPongTimeout,
		MaxReconnectGap: defaultMaxReconnectGap,
	}
}

// envOptions is the environment surface for OptionsFromEnv.
type envOptions struct {
	AuthEndpoint    string `split_words:"true"`
	Secret          string
	Host            string
	Cluster         string
	Port            int
	Path            string
	UseTLS          bool          `split_words:"true" default:"true"`
	AutoReconnect   bool          `split_words:"true" default:"true"`
	ActivityTimeout time.Duration `split_words:"true"`
}

// OptionsFromEnv builds ClientOptions from environment variables with the
// given prefix, e.g. prefix "CHANNELS" reads CHANNELS_AUTH_ENDPOINT,
// CHANNELS_SECRET, CHANNELS_CLUSTER and so on. An auth endpoint takes
// precedence over an inline secret when both are set.
func OptionsFromEnv(prefix string) (ClientOptions, error) {
	var env envOptions
	if err := envconfig.Process(prefix, &env); err != nil {
		return ClientOptions{}, err
	}

	opts := DefaultOptions()
	opts.Host = env.Host
	opts.Cluster = env.Cluster
	opts.Port = env.Port
	opts.Path = env.Path
	opts.UseTLS = env.UseTLS
	opts.AutoReconnect = env.AutoReconnect
	opts.ActivityTimeout = env.ActivityTimeout

	switch {
	case env.AuthEndpoint != "":
		opts.AuthMethod = AuthEndpoint(env.AuthEndpoint)
	case env.Secret != "":
		opts.AuthMethod = InlineSecret(env.Secret)
	}

	return opts, nil
}

// connectionURL builds the websocket URL for an app key, including the
// protocol version query parameters.
func connectionURL(key string, opts ClientOptions) string {
	scheme := "ws"
	port := 80
	if opts.UseTLS {
		scheme = "wss"
		port = 443
	}
	if opts.Port != 0 {
		port = opts.Port
	}

	host := defaultHost
	if opts.Cluster != "" {
		host = fmt.Sprintf("ws-%s.pusher.com", opts.Cluster)
	} else if opts.Host != "" {
		host = opts.Host
	}

	path := "/app/" + key
	if opts.Path != "" {
		path = opts.Path
	}

	q := url.Values{}
	q.Set("client", clientName)
	q.Set("version", libraryVersion)
	q.Set("protocol", protocolVersion)

	u := url.URL{
		Scheme:   scheme,
		Host:     fmt.Sprintf("%s:%d", host, port),
		Path:     path,
		RawQuery: q.Encode(),
	}
	return u.String()
}
