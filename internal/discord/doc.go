// Package discord implements the Discord bot transport for PlayerPulse:
// REST calls for opening DM channels and sending messages, and a websocket
// gateway client for receiving direct messages.
package discord
