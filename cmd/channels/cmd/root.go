package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "channels",
	Short: "Command line client for Channels pub/sub servers",
	Long: `channels is a command line client for Channels-protocol pub/sub
servers. It can tap channels to print their events, and trigger client
events on private channels. Set parameters with environment variables,
for example:

export CHANNELS_KEY=appkey
export CHANNELS_CLUSTER=eu
export CHANNELS_AUTHENDPOINT=https://example.org/pusher/auth
export CHANNELS_DEVELOPMENT=true
channels tap my-channel private-other-channel
`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
