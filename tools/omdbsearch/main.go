// Command omdbsearch queries the configured OMDb endpoint from the shell,
// printing search results or a single title's detail as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"popcorn/config"
	"popcorn/services/omdb"
)

func main() {
	var (
		configPath = flag.String("config", "cache/settings.json", "Path to backend settings.json")
		detailID   = flag.String("id", "", "Fetch the detail for this IMDb id instead of searching")
		timeout    = flag.Duration("timeout", 20*time.Second, "Overall request timeout")
	)
	flag.Parse()

	mgr := config.NewManager(*configPath)
	settings, err := mgr.Load()
	if err != nil {
		log.Fatalf("load settings: %v", err)
	}
	config.ApplyEnv(&settings)

	client := omdb.NewClient(omdb.Config{
		BaseURL:       settings.OMDb.BaseURL,
		APIKey:        settings.OMDb.APIKey,
		Timeout:       time.Duration(settings.OMDb.TimeoutSeconds) * time.Second,
		DetailRetries: settings.OMDb.DetailRetries,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var out any
	if id := strings.TrimSpace(*detailID); id != "" {
		out, err = client.Details(ctx, id)
	} else {
		query := strings.Join(flag.Args(), " ")
		if strings.TrimSpace(query) == "" {
			log.Fatalf("usage: omdbsearch [-config path] [-id imdbID | query...]")
		}
		out, err = client.Search(ctx, query)
	}
	if err != nil {
		log.Fatalf("omdb: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("encode: %v", err)
	}
}
