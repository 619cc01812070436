package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-go-golems/dltctl/pkg/api"
	"github.com/go-go-golems/dltctl/pkg/fakecp"
)

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}

func main() {
	var (
		port         int
		token        string
		updateScript string
		runScript    string
		seed         string
		pageSize     int
		jsonStrings  bool
	)
	flag.IntVar(&port, "port", 0, "Port to listen on (0 for ephemeral)")
	flag.StringVar(&token, "token", "", "Required bearer token (empty accepts any)")
	flag.StringVar(&updateScript, "update-script", "INITIALIZING,RUNNING,COMPLETED", "Update states appended on start")
	flag.StringVar(&runScript, "run-script", "PENDING,RUNNING,RUNNING", "Job run life cycle states")
	flag.StringVar(&seed, "seed", "", "Name of a pipeline to register at startup")
	flag.IntVar(&pageSize, "page-size", 0, "Cap events per page (0 uses max_results)")
	flag.BoolVar(&jsonStrings, "events-json", false, "Serve event pages as events_json strings")
	flag.Parse()

	if port == 0 {
		if v := os.Getenv("FAKE_CONTROL_PLANE_PORT"); v != "" {
			_, _ = fmt.Sscanf(v, "%d", &port)
		}
	}

	srv := fakecp.New()
	srv.Token = token
	srv.PageSize = pageSize
	srv.EventsAsJSONStrings = jsonStrings
	srv.UpdateScript = splitList(updateScript)
	srv.RunScript = nil
	for _, st := range splitList(runScript) {
		srv.RunScript = append(srv.RunScript, api.LifeCycleState(st))
	}
	if seed != "" {
		id := srv.AddPipeline(api.PipelineSpec{Name: seed})
		_, _ = fmt.Fprintf(os.Stderr, "seeded pipeline %s with id %s\n", seed, id)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "listen error: %v\n", err)
		os.Exit(2)
	}
	_, _ = fmt.Fprintf(os.Stderr, "listening on http://%s\n", ln.Addr().String())

	hs := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 2 * time.Second,
	}
	if err := hs.Serve(ln); err != nil && err != http.ErrServerClosed {
		_, _ = fmt.Fprintf(os.Stderr, "serve error: %v\n", err)
		os.Exit(3)
	}
}
