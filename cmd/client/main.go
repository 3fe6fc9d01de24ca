package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hollowcrest/orbstorm-mp/client"
	"github.com/hollowcrest/orbstorm-mp/network"
	"github.com/hollowcrest/orbstorm-mp/shared/netconfig"
	"github.com/hollowcrest/orbstorm-mp/transport"
	"github.com/hollowcrest/orbstorm-mp/transport/kcp"
	"github.com/hollowcrest/orbstorm-mp/transport/ws"
)

const frameRate = 60

func main() {
	addr := flag.String("addr", "localhost:7373", "Server address")
	transportKind := flag.String("transport", "", "Transport backend: ws or kcp (default: saved or ws)")
	name := flag.String("name", "", "Player name (default: saved or bot-<pid>)")
	botSeed := flag.Int64("botseed", 0, "Bot rng seed (0 = time-based)")
	flag.Parse()

	if err := client.InitPersistence(); err == nil {
		if saved, _ := client.LoadSettings(); saved != nil {
			if *name == "" {
				*name = saved.PlayerName
			}
			if *transportKind == "" {
				*transportKind = saved.Transport
			}
		}
	}
	if *transportKind == "" {
		*transportKind = "ws"
	}
	if *name == "" {
		*name = "bot-" + time.Now().Format("150405")
	}
	_ = client.SaveSettings(&client.SavedSettings{
		PlayerName: *name,
		LastServer: *addr,
		Transport:  *transportKind,
	})

	var conn transport.Conn
	var err error
	switch *transportKind {
	case "ws":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		conn, err = ws.Dial(ctx, *addr)
		cancel()
	case "kcp":
		conn, err = kcp.Dial(*addr)
	default:
		log.Fatalf("unknown transport %q", *transportKind)
	}
	if err != nil {
		log.Fatalf("dial %s: %v", *addr, err)
	}

	cfg := netconfig.Default()
	nc := network.NewClient()
	rt := client.NewRuntime(cfg, nc, nil)

	seed := *botSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rt.SetInput(client.NewBotInput(rt, seed))

	if err := rt.Connect(conn, *name); err != nil {
		log.Fatalf("connect: %v", err)
	}
	log.Printf("Connected to %s as %q (%s)", *addr, *name, *transportKind)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second / frameRate)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-sigChan:
			log.Println("Disconnecting...")
			nc.Disconnect()
			return
		case now := <-ticker.C:
			rt.Update(now.Sub(last))
			last = now

			for _, ev := range nc.DrainWaveEvents() {
				log.Printf("Wave %d: %d enemies incoming", ev.WaveNumber, ev.EnemyCount)
			}
			for _, ev := range nc.DrainBossEvents() {
				log.Printf("Boss %d spawned at (%.0f, %.0f)", ev.EntityID, ev.X, ev.Y)
			}
			for _, ev := range nc.DrainLevelUpEvents() {
				if ev.PlayerID == nc.LocalID() {
					log.Printf("Level up! Now level %d", ev.Level)
					if err := nc.SendUpgrade(1); err != nil {
						log.Printf("send upgrade: %v", err)
					}
				}
			}
			if ev, ok := nc.DrainEndMatch(); ok {
				log.Printf("Match over at wave %d after %s",
					ev.FinalWave, time.Duration(ev.DurationMs)*time.Millisecond)
				nc.Disconnect()
				return
			}
			if nc.State() == network.StateError {
				log.Fatalf("connection error: %v", nc.LastError())
			}
			if nc.State() == network.StateDisconnected {
				log.Println("Server closed the connection")
				return
			}
		}
	}
}
