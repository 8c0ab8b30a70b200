package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/parkbeam/internal/config"
	"github.com/danmuck/parkbeam/internal/logging"
	"github.com/danmuck/parkbeam/internal/service"
)

const envConfigPath = "PARKBEAM_CONFIG"

func main() {
	defaultPath := strings.TrimSpace(os.Getenv(envConfigPath))
	if defaultPath == "" {
		defaultPath = config.DefaultPath
	}
	path := flag.String("config", defaultPath, "service config file (env "+envConfigPath+")")
	device := flag.String("device", "", "override serial.device")
	flag.Parse()

	logging.ConfigureRuntime()

	cfg, err := config.Load(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parkbeamctl: %v\n", err)
		os.Exit(1)
	}
	if *device != "" {
		cfg.Serial.Device = *device
	}

	if err := service.New(cfg).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "parkbeamctl: %v\n", err)
		os.Exit(1)
	}
}
