// Package channels implements a websocket client for Channels-protocol
// pub/sub servers: connection lifecycle with automatic reconnection,
// channel subscription with pluggable authorization, presence member
// bookkeeping, end-to-end encrypted channels, and client-triggered events.
//
// A minimal consumer:
//
//	client := channels.New("app-key")
//	channel := client.Subscribe("my-channel")
//	channel.Bind("my-event", func(e *channels.Event) {
//		fmt.Println(e.Data)
//	})
//	client.Connect()
//
// Callbacks are delivered serially on a single goroutine per connection.
package channels
