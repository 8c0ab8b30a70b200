package main

import (
	"flag"
	"log"

	"github.com/danmuck/parkbeam/internal/config"
	"github.com/danmuck/parkbeam/internal/zones"
)

func main() {
	kind := flag.String("kind", "service", "config kind: service|zones")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to the per-kind path)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		path := *input
		if path == "" {
			path = defaultPath(*kind)
		}

		switch *kind {
		case "service":
			if _, err := config.Load(path); err != nil {
				log.Fatal(err)
			}
		case "zones":
			list, err := zones.LoadFile(path)
			if err != nil {
				log.Fatal(err)
			}
			log.Printf("%d zones", len(list))
		}
		log.Printf("Validated %s config at %s", *kind, path)
		return
	}

	target := *output
	if target == "" {
		target = defaultPath(*kind)
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}

func defaultPath(kind string) string {
	switch kind {
	case "service":
		return config.DefaultPath
	case "zones":
		return "zones.toml"
	default:
		log.Fatalf("unknown kind: %s", kind)
		return ""
	}
}
