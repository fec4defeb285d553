// Package main exports the gateway's OpenAPI document to a file, so CI
// can publish the API contract and clients can be generated without a
// running server.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c360/infergate/backend"
	"github.com/c360/infergate/bridge"
	"github.com/c360/infergate/gateway"
	"github.com/c360/infergate/monitor"
)

func main() {
	out := flag.String("out", "./specs/openapi.v3.json", "Output path (.json or .yaml)")
	withMonitor := flag.Bool("monitor", true, "Include the occupancy monitor routes")
	apiVersion := flag.String("api-version", "", "Override the document's API version")
	flag.Parse()

	log.Printf("OpenAPI Exporter")
	log.Printf("  Output: %s", *out)
	log.Printf("  Monitor routes: %v", *withMonitor)

	doc, err := buildDocument(*withMonitor, *apiVersion)
	if err != nil {
		log.Fatalf("Failed to build document: %v", err)
	}

	if err := writeDocument(*out, doc); err != nil {
		log.Fatalf("Failed to write document: %v", err)
	}

	log.Printf("  Generated: %s", *out)
}

// buildDocument constructs the gateway (never started) purely for its
// sealed route table. The bridge exists only because the constructor
// requires an engine.
func buildDocument(withMonitor bool, apiVersion string) (any, error) {
	engine, err := bridge.New(bridge.DefaultConfig(), backend.NewLoopback())
	if err != nil {
		return nil, fmt.Errorf("construct engine: %w", err)
	}

	cfg := gateway.DefaultConfig()
	if apiVersion != "" {
		cfg.Version = apiVersion
	}

	var opts []gateway.Option
	if withMonitor {
		mon, err := monitor.New(monitor.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("construct monitor: %w", err)
		}
		opts = append(opts, gateway.WithMonitor(mon))
	}

	gw, err := gateway.New(cfg, engine, opts...)
	if err != nil {
		return nil, fmt.Errorf("construct gateway: %w", err)
	}

	return gw.Registry().Document(), nil
}

// writeDocument renders the document as JSON or YAML by extension.
func writeDocument(path string, doc any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(doc)
	default:
		data, err = json.MarshalIndent(doc, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}
