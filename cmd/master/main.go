package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/hollowcrest/orbstorm-mp/master"
)

func main() {
	port := flag.Int("port", 8080, "HTTP listen port")
	ttl := flag.Duration("ttl", 90*time.Second, "Server TTL before expiry")
	flag.Parse()

	reg := master.NewRegistry(*ttl)
	mux := master.NewMux(reg)

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("[master] starting on %s (TTL=%s)", addr, *ttl)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("[master] fatal: %v", err)
	}
}
