package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/vigilo/siem/internal/loadgen"
	"github.com/vigilo/siem/internal/siem/config"
	"github.com/vigilo/siem/internal/siem/logger"
	"github.com/vigilo/siem/internal/siem/storage"
)

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "events":
		eventsCmd := flag.NewFlagSet("events", flag.ExitOnError)
		configPath := eventsCmd.String("config", "config.yaml", "Path to config file")
		count := eventsCmd.Int("count", 500, "Number of events to insert")
		seed := eventsCmd.Int64("seed", 0, "Deterministic generation seed (0 = random)")
		eventsCmd.Parse(os.Args[2:])
		runEvents(*configPath, *count, *seed)

	case "send":
		sendCmd := flag.NewFlagSet("send", flag.ExitOnError)
		addr := sendCmd.String("addr", "127.0.0.1:5514", "UDP syslog target address")
		count := sendCmd.Int("count", 100, "Number of datagrams to send")
		seed := sendCmd.Int64("seed", 0, "Deterministic generation seed (0 = random)")
		interval := sendCmd.Duration("interval", 10*time.Millisecond, "Delay between datagrams")
		sendCmd.Parse(os.Args[2:])
		runSend(*addr, *count, *seed, *interval)

	case "help", "--help", "-h":
		printHelp()
	default:
		fmt.Printf("Unknown subcommand: %s\n\n", os.Args[1])
		printHelp()
		os.Exit(1)
	}
}

// runEvents bulk-inserts synthetic events straight into the configured
// storage backend.
func runEvents(configPath string, count int, seed int64) {
	viper.SetConfigFile(configPath)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not read config (%v). Using defaults.\n", err)
	}
	if err := config.Load(viper.GetViper()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.InitLogger(config.Get().Logging.Level); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	loadgen.Seed(seed)

	ctx := context.Background()
	store, err := storage.Open(ctx, config.Get())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: open storage backend: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	n, err := store.InsertBulk(ctx, loadgen.Events(count))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: bulk insert: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("inserted %d synthetic events\n", n)
}

// runSend fires synthetic syslog datagrams at a running collector.
func runSend(addr string, count int, seed int64, interval time.Duration) {
	loadgen.Seed(seed)

	conn, err := net.Dial("udp", addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: dial %s: %v\n", addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	sent := 0
	for i := 0; i < count; i++ {
		if _, err := conn.Write([]byte(loadgen.Datagram())); err != nil {
			fmt.Fprintf(os.Stderr, "Error: send datagram: %v\n", err)
			os.Exit(1)
		}
		sent++
		if interval > 0 {
			time.Sleep(interval)
		}
	}
	fmt.Printf("sent %d datagrams to %s\n", sent, addr)
}

func printHelp() {
	fmt.Println(`Usage: siemgen <subcommand> [flags]`)
	fmt.Println()
	fmt.Println("Subcommands:")
	fmt.Println("  events  --config <path> --count <n> --seed <n>     Bulk-insert synthetic events")
	fmt.Println("  send    --addr <host:port> --count <n> --seed <n>  Send synthetic syslog datagrams")
	fmt.Println("  help                                               Show this help message")
}
