package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/skyezerfox/headsync/connection"
	"github.com/skyezerfox/headsync/store"
	"github.com/skyezerfox/headsync/transport"
)

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	viper.SetConfigName("headsync")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetDefault("listener.host", "localhost")
	viper.SetDefault("listener.port", 5031)
	viper.SetDefault("listener.ws_port", 0)

	viper.SetDefault("server.max_players", 100)
	viper.SetDefault("server.idle_timeout", 60)

	viper.SetDefault("broadcast.hz", 30)
	viper.SetDefault("broadcast.exclude_self", false)

	viper.SetDefault("limits.max_frame_bytes", 64*1024)
	viper.SetDefault("limits.send_queue", 8)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if err := viper.SafeWriteConfig(); err != nil {
				log.Fatal().Msg("Failed to write sample config")
				os.Exit(1)
			}
		} else {
			log.Fatal().Msg("Failed to read config")
			os.Exit(1)
		}
	}
}

func main() {
	cfg := connection.Config{
		MaxPlayers:    viper.GetInt("server.max_players"),
		TickRate:      viper.GetInt("broadcast.hz"),
		ExcludeSelf:   viper.GetBool("broadcast.exclude_self"),
		MaxFrameBytes: viper.GetInt("limits.max_frame_bytes"),
		SendQueue:     viper.GetInt("limits.send_queue"),
		IdleTimeout:   time.Duration(viper.GetInt("server.idle_timeout")) * time.Second,
	}

	st := store.NewStore()
	cm := connection.NewManager(st, cfg)
	bc := connection.NewBroadcaster(st, cm)
	go bc.Run()

	host := viper.GetString("listener.host")
	addr := fmt.Sprintf("%s:%d", host, viper.GetInt("listener.port"))
	listener, err := transport.Listen(addr)
	if err != nil {
		log.Fatal().Err(err).Msgf("Unable to listen on %s", addr)
	}
	log.Info().Str("addr", addr).Int("hz", cm.Config().TickRate).Msg("Starting pose server...")

	if wsPort := viper.GetInt("listener.ws_port"); wsPort > 0 {
		wsAddr := fmt.Sprintf("%s:%d", host, wsPort)
		wsListener, err := transport.ListenWS(wsAddr, "/ws", int64(cfg.MaxFrameBytes)+16)
		if err != nil {
			log.Fatal().Err(err).Msgf("Unable to listen on ws %s", wsAddr)
		}
		log.Info().Str("addr", wsAddr).Msg("WebSocket listener up")
		go acceptLoop(wsListener, cm)
	}

	acceptLoop(listener, cm)
}

// acceptLoop hands every accepted connection to its own handler. A
// failure to accept is surfaced to the operator and the loop exits.
func acceptLoop(ln net.Listener, cm *connection.Manager) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || errors.Is(err, transport.ErrListenerClosed) {
				return
			}
			log.Err(err).Msg("Failed to accept connection")
			return
		}
		h := cm.NewHandler(conn)
		go h.Handle()
	}
}
