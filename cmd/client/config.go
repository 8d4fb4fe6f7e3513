package main

type Config struct {
	ServerAddress string `env:"CHAT_ADDR,default=localhost:7000"`
	// Nickname is sent as a login right after connecting. Empty keeps the guest name.
	Nickname string `env:"CHAT_NICK"`
}
