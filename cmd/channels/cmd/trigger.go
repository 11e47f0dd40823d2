package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/relayforge/channels"
)

// triggerCmd represents the trigger command
var triggerCmd = &cobra.Command{
	Use:   "trigger [channel] [event] [data]",
	Short: "Trigger a client event on a private or presence channel",
	Long: `Trigger connects, subscribes to the given channel, sends one
client event and disconnects. The event name must start with "client-"
and the channel must be a private or presence channel. Data is a JSON
value, sent verbatim. Configuration is the same as for tap, for example:

export CHANNELS_KEY=appkey
export CHANNELS_SECRET=appsecret
channels trigger private-chat client-message '{"text":"hello"}'
`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {

		channelName, eventName, data := args[0], args[1], args[2]

		client := clientFromEnv()

		var payload interface{}
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			// not JSON, send as a plain string
			payload = data
		}

		sent := make(chan struct{})
		ch := client.Subscribe(channelName)
		ch.Bind(channels.EventSubscriptionSucceeded, func(e *channels.Event) {
			close(sent)
		})

		// queued until the subscription succeeds
		ch.Trigger(eventName, payload)

		client.Connect()

		select {
		case <-sent:
			time.Sleep(100 * time.Millisecond)
		case <-time.After(10 * time.Second):
			fmt.Fprintln(os.Stderr, "timed out waiting for subscription")
			os.Exit(1)
		}

		client.Disconnect()
	},
}

func init() {
	rootCmd.AddCommand(triggerCmd)
}
