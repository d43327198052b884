package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"

	"github.com/hamzaKhattat/asterisk-channel-normalizer/internal/agi"
	"github.com/hamzaKhattat/asterisk-channel-normalizer/internal/ami"
	"github.com/hamzaKhattat/asterisk-channel-normalizer/internal/cli"
	"github.com/hamzaKhattat/asterisk-channel-normalizer/internal/db"
	"github.com/hamzaKhattat/asterisk-channel-normalizer/internal/peer"
)

const version = "1.0.0"

func main() {
	var (
		configFile  = flag.String("config", "configs/normalizer.yaml", "Configuration file path")
		initDB      = flag.Bool("init-db", false, "Initialize database")
		runAGI      = flag.Bool("agi", false, "Run AGI server")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		showHelp    = flag.Bool("help", false, "Show help")
		showVersion = flag.Bool("version", false, "Show version")
	)
	flag.Parse()

	if *showHelp {
		showUsage()
		return
	}

	if *showVersion {
		fmt.Println("Asterisk Channel Normalizer v" + version)
		return
	}

	if *verbose {
		log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	} else {
		log.SetFlags(log.Ldate | log.Ltime)
	}

	loadConfig(*configFile, *initDB)

	var store *db.ChannelStore
	if viper.GetBool("database.enabled") {
		dsn := db.DSN(
			viper.GetString("database.user"),
			viper.GetString("database.password"),
			viper.GetString("database.host"),
			viper.GetInt("database.port"),
			viper.GetString("database.name"),
		)
		if err := db.Initialize(dsn); err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer db.Close()
		store = db.NewChannelStore(db.DB)
	} else if *initDB {
		log.Fatal("database.enabled is false, nothing to initialize")
	}

	peerMgr := peer.NewManager(db.DB)
	if err := peerMgr.Initialize(); err != nil {
		log.Fatalf("Failed to load peers: %v", err)
	}

	if *initDB {
		fmt.Println("Database initialized successfully!")
		fmt.Println("\nNext steps:")
		fmt.Println("1. Add peers:")
		fmt.Println("   ./normalizer peer add trunk01 --protocol pjsip --context from-trunk")
		fmt.Println("2. Point the dialplan at the AGI server:")
		fmt.Println("   same => n,AGI(agi://127.0.0.1:4573/normalize)")
		fmt.Println("3. Start AGI server:")
		fmt.Println("   ./normalizer -agi -verbose")
		return
	}

	if *runAGI {
		runAGIServer(peerMgr, store, *verbose)
		return
	}

	runCLI(peerMgr, store)
}

func loadConfig(file string, quiet bool) {
	viper.SetConfigFile(file)
	viper.SetDefault("database.enabled", true)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)
	viper.SetDefault("database.user", "root")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.name", "asterisk_channels")
	viper.SetDefault("agi.port", 4573)
	viper.SetDefault("ami.host", "localhost")
	viper.SetDefault("ami.port", 5038)
	viper.SetDefault("ami.username", "")
	viper.SetDefault("ami.password", "")

	viper.SetEnvPrefix("NORMALIZER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil && !quiet {
		log.Printf("Warning: Could not read config file: %v", err)
	}
}

func runAGIServer(peerMgr *peer.Manager, store *db.ChannelStore, verbose bool) {
	var recorder agi.Recorder
	if store != nil {
		recorder = store
	}
	agiServer := agi.NewServer(viper.GetInt("agi.port"), recorder, peerMgr)

	go func() {
		if err := agiServer.Start(); err != nil {
			log.Fatalf("Failed to start AGI server: %v", err)
		}
	}()

	if viper.GetString("ami.username") != "" {
		amiManager := ami.NewManager(
			viper.GetString("ami.host"),
			viper.GetInt("ami.port"),
			viper.GetString("ami.username"),
			viper.GetString("ami.password"),
		)

		if err := amiManager.Connect(); err != nil {
			log.Printf("Warning: Failed to connect to AMI: %v", err)
		} else {
			defer amiManager.Close()
			go watchEvents(amiManager, recorder, verbose)
		}
	}

	fmt.Println("AGI Server running. Press Ctrl+C to stop.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	agiServer.Stop()
}

// watchEvents records the channel of every Newchannel and Hangup event.
func watchEvents(m *ami.Manager, recorder agi.Recorder, verbose bool) {
	for event := range m.Events() {
		name := event.Name()
		if name != "Newchannel" && name != "Hangup" {
			continue
		}

		ch, err := event.Channel()
		if err != nil {
			log.Printf("[AMI] %s: %v", name, err)
			continue
		}
		if verbose {
			log.Printf("[AMI] %s %s protocol=%s name=%s", name, ch.ID, ch.Protocol, ch.Name)
		}
		if recorder != nil && name == "Newchannel" {
			if err := recorder.Record(ch, "ami"); err != nil {
				log.Printf("[AMI] Failed to record channel: %v", err)
			}
		}
	}
}

func runCLI(peerMgr *peer.Manager, store *db.ChannelStore) {
	var channelStore cli.ChannelStore
	if store != nil {
		channelStore = store
	}

	rootCmd := cli.InitCLI(peerMgr, channelStore)
	rootCmd.SetArgs(flag.Args())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`Asterisk Channel Normalizer

USAGE:
    normalizer [flags] <command> [arguments]

FLAGS:
    -agi            Run AGI server
    -init-db        Initialize database
    -verbose        Enable verbose logging
    -config <file>  Configuration file (default: configs/normalizer.yaml)
    -help           Show this help
    -version        Show version

COMMANDS:
    parse           Parse channel identifiers
    protocol        Check technology tokens
    bool            Decode Asterisk boolean values
    title           Show channel titles
    peer            Manage peers
    history         Show recently normalized channels
    stats           Show channel and peer statistics

EXAMPLES:
    ./normalizer parse PJSIP/out-datora-4543611@external
    ./normalizer protocol pjsip iax2
    ./normalizer bool yes off null
    ./normalizer peer add trunk01 --protocol pjsip
    ./normalizer peer import peers.yaml
    ./normalizer -agi -verbose

For more information on a command, use:
    ./normalizer <command> --help`)
}
