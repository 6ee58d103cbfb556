package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/vehiclemap/vms/pkg/client"
	"github.com/vehiclemap/vms/pkg/config"
	"github.com/vehiclemap/vms/pkg/vms"
)

// version metadata populated via -ldflags at build time
var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	if len(os.Args) < 2 {
		showHelp()
		return
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "version":
		fmt.Printf("vms-cli %s", version)
		if commit != "" {
			fmt.Printf(" (commit %s)", commit)
		}
		if date != "" {
			fmt.Printf(" built %s", date)
		}
		fmt.Println()

	case "subscribe":
		handleSubscribe(args)

	case "help", "-h", "--help":
		showHelp()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		showHelp()
		os.Exit(1)
	}
}

func handleSubscribe(args []string) {
	var positional []string
	silent := false
	configPath := ""

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--silent":
			silent = true
		case "--config":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a path")
				os.Exit(1)
			}
			i++
			configPath = args[i]
		default:
			positional = append(positional, args[i])
		}
	}

	if len(positional) != 2 {
		fmt.Fprintln(os.Stderr, "Usage: vms-cli subscribe <layer> <version> [--silent] [--config path]")
		os.Exit(1)
	}

	layer, err := strconv.ParseInt(positional[0], 10, 32)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid layer %q: %v\n", positional[0], err)
		os.Exit(1)
	}
	ver, err := strconv.ParseInt(positional[1], 10, 32)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid version %q: %v\n", positional[1], err)
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
	}

	c, err := client.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create client: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := c.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer c.Disconnect()

	sub := c.Subscriber()
	if err := sub.SetListener(func(msg vms.Message) error {
		fmt.Printf("[%s] %d bytes: %s\n", msg.Key, len(msg.Payload), string(msg.Payload))
		return nil
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to set listener: %v\n", err)
		os.Exit(1)
	}

	key := vms.LayerVersion{Layer: int32(layer), Version: int32(ver)}
	if err := sub.Subscribe(ctx, key, silent); err != nil {
		fmt.Fprintf(os.Stderr, "failed to subscribe: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Subscribed to %s (silent=%v), waiting for messages. Ctrl-C to stop.\n", key, silent)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	if err := sub.Unsubscribe(ctx, key); err != nil {
		fmt.Fprintf(os.Stderr, "failed to unsubscribe: %v\n", err)
	}
	sub.ClearListener()
	fmt.Println("Done.")
}

func showHelp() {
	fmt.Println("vms-cli - Vehicle Map Service subscriber")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  vms-cli subscribe <layer> <version> [--silent] [--config path]")
	fmt.Println("  vms-cli version")
	fmt.Println("  vms-cli help")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  vms-cli subscribe 3 1")
	fmt.Println("  vms-cli subscribe 3 1 --silent --config client.yaml")
}
