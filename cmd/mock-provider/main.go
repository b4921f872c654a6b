// Command mock-provider serves an Ollama-compatible API with canned replies,
// so describe and extract runs can be exercised without a real model server.
// Point OLLAMA_HOST at it and optionally script failures for retry testing.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/MDGrey33/visionai/internal/mockprovider"
)

func main() {
	addr := defaultString("MOCK_PROVIDER_ADDR", ":11434")
	description := defaultString("MOCK_PROVIDER_DESCRIPTION", "")
	completion := defaultString("MOCK_PROVIDER_COMPLETION", "")

	fs := flag.NewFlagSet("mock-provider", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address")
	fs.StringVar(&description, "description", description, "Fixed reply for image description requests")
	fs.StringVar(&completion, "completion", completion, "Fixed reply for text generation requests")
	failCount := fs.Int("fail-count", 0, "Number of initial requests to fail")
	failStatus := fs.Int("fail-status", 503, "HTTP status for scripted failures")
	_ = fs.Parse(os.Args[1:])

	srv := mockprovider.New(description, completion)
	if *failCount > 0 {
		srv.FailNext(*failCount, *failStatus, "scripted failure")
	}

	_, _ = fmt.Fprintf(os.Stdout, "mock-provider listening on %s\n", addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}
