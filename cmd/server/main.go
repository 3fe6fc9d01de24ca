package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hollowcrest/orbstorm-mp/server/core"
	"github.com/hollowcrest/orbstorm-mp/shared/netconfig"
	"github.com/hollowcrest/orbstorm-mp/transport"
	"github.com/hollowcrest/orbstorm-mp/transport/kcp"
	"github.com/hollowcrest/orbstorm-mp/transport/ws"
)

func main() {
	addr := flag.String("addr", ":7373", "Listen address")
	transportKind := flag.String("transport", "ws", "Transport backend: ws or kcp")
	tickRate := flag.Int("tickrate", 20, "Tick rate (updates per second)")
	arenaSize := flag.Float64("arena", 100, "Arena side length")
	name := flag.String("name", "Orbstorm Server", "Server display name")
	region := flag.String("region", "", "Region tag for the server browser")
	maxPlayers := flag.Int("maxplayers", 8, "Player cap advertised to the master")
	masterURL := flag.String("master", "", "Master server URL (empty = don't register)")
	strict := flag.Bool("strict", false, "Error on state updates for unregistered entities")
	flag.Parse()

	cfg := netconfig.Default()
	cfg.TickRate = *tickRate
	cfg.StrictRegistration = *strict

	var ts transport.Server
	switch *transportKind {
	case "ws":
		ts = ws.NewServer(*addr)
	case "kcp":
		ts = kcp.NewServer(*addr)
	default:
		log.Fatalf("unknown transport %q", *transportKind)
	}

	server := core.NewServer(cfg, ts, *arenaSize)
	loop := core.NewGameLoop(server, cfg.TickRate)
	go loop.Run()

	var reg *core.Registration
	if *masterURL != "" {
		reg = core.NewRegistration(*masterURL, core.ServerInfo{
			Name:       *name,
			Address:    *addr,
			Transport:  *transportKind,
			MaxPlayers: *maxPlayers,
			Region:     *region,
		}, server)
		reg.Start()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutting down server...")
		if reg != nil {
			reg.Stop()
		}
		loop.Stop()
		_ = ts.Close()
		os.Exit(0)
	}()

	log.Printf("Starting %q on %s (%s, tick rate %d/s)", *name, *addr, *transportKind, cfg.TickRate)
	if err := ts.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
