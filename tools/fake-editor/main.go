// fake-editor stands in for an editor that accepts hot-reload commands. Run
// it, then point devtrigger at it with TARGET_PROCESS=fake-editor.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"
)

type reload struct {
	At         string `json:"at"`
	RemoteAddr string `json:"remote_addr"`
	Status     int    `json:"status"`
}

type stats struct {
	Reloads int64    `json:"reloads"`
	Last    []reload `json:"last"`
	Since   string   `json:"since"`
}

var (
	mu       sync.Mutex
	reloads  int64
	last     []reload
	since    time.Time
	maxKept  = 50
	status   = http.StatusOK
	delay    time.Duration
	endpoint = "/command/hot-reload"
)

func main() {
	since = time.Now().UTC()

	// Port 0 picks a free port, like a real editor does on each start.
	addr := "127.0.0.1:0"
	if v := os.Getenv("ADDR"); v != "" {
		addr = v
	}
	if v := os.Getenv("RELOAD_STATUS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Fatalf("fake-editor: invalid RELOAD_STATUS %q", v)
		}
		status = n
	}
	if v := os.Getenv("RELOAD_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("fake-editor: invalid RELOAD_DELAY %q", v)
		}
		delay = d
	}

	mux := http.NewServeMux()
	mux.HandleFunc(endpoint, reloadHandler)
	mux.HandleFunc("/stats", statsHandler)
	mux.HandleFunc("/reset", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		reloads = 0
		last = nil
		since = time.Now().UTC()
		mu.Unlock()
		fmt.Fprintln(w, "reset")
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		log.Fatalf("fake-editor: %v", err)
	}
	log.Printf("fake-editor: listening on %s (pid %d, status %d, delay %s)", ln.Addr(), os.Getpid(), status, delay)
	log.Fatal(srv.Serve(ln))
}

func reloadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	mu.Lock()
	reloads++
	last = append(last, reload{
		At:         time.Now().UTC().Format(time.RFC3339Nano),
		RemoteAddr: r.RemoteAddr,
		Status:     status,
	})
	if len(last) > maxKept {
		last = last[len(last)-maxKept:]
	}
	n := reloads
	mu.Unlock()

	log.Printf("fake-editor: reload #%d from %s -> %d", n, r.RemoteAddr, status)
	w.WriteHeader(status)
}

func statsHandler(w http.ResponseWriter, _ *http.Request) {
	mu.Lock()
	s := stats{
		Reloads: reloads,
		Last:    last,
		Since:   since.Format(time.RFC3339),
	}
	mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}
