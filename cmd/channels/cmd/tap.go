package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/relayforge/channels"
)

// tapCmd represents the tap command
var tapCmd = &cobra.Command{
	Use:   "tap [channel...]",
	Short: "Subscribe to channels and print their events",
	Long: `Tap subscribes to the given channels and prints every received
event to stdout as one JSON object per line. Private and presence
channels are authorized with the configured auth endpoint or secret.
Set parameters with environment variables, for example:

export CHANNELS_KEY=appkey
export CHANNELS_CLUSTER=eu
export CHANNELS_AUTHENDPOINT=https://example.org/pusher/auth
export CHANNELS_DEVELOPMENT=true
channels tap my-channel presence-chat
`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {

		client := clientFromEnv()

		client.Bind(func(e *channels.Event) {
			line, err := json.Marshal(map[string]string{
				"channel": e.ChannelName,
				"event":   e.EventName,
				"data":    e.Data,
			})
			if err != nil {
				return
			}
			fmt.Println(string(line))
		})

		for _, name := range args {
			client.Subscribe(name)
		}

		client.Connect()

		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		<-c

		client.Disconnect()
		time.Sleep(100 * time.Millisecond)

		report, err := json.Marshal(client.Connection.StatsReport())
		if err == nil {
			fmt.Fprintln(os.Stderr, string(report))
		}
	},
}

func init() {
	rootCmd.AddCommand(tapCmd)
}

// clientFromEnv builds a client from CHANNELS_* environment variables.
func clientFromEnv() *channels.Client {

	viper.SetEnvPrefix("CHANNELS")
	viper.AutomaticEnv()

	viper.SetDefault("port", 443)
	viper.SetDefault("tls", true)

	key := viper.GetString("key")
	development := viper.GetBool("development")

	if development {
		// development environment
		log.SetFormatter(&log.TextFormatter{})
		log.SetLevel(log.TraceLevel)
		log.SetOutput(os.Stdout)
	} else {
		// production environment
		log.SetFormatter(&log.JSONFormatter{})
		log.SetLevel(log.WarnLevel)
	}

	if key == "" {
		fmt.Fprintln(os.Stderr, "CHANNELS_KEY is required")
		os.Exit(1)
	}

	options := channels.DefaultOptions()
	options.Host = viper.GetString("host")
	options.Cluster = viper.GetString("cluster")
	options.Port = viper.GetInt("port")
	options.UseTLS = viper.GetBool("tls")

	if endpoint := viper.GetString("authendpoint"); endpoint != "" {
		options.AuthMethod = channels.AuthEndpoint(endpoint)
	} else if secret := viper.GetString("secret"); secret != "" {
		options.AuthMethod = channels.InlineSecret(secret)
	}

	return channels.NewWithOptions(key, options)
}
