package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/auric-network/auric/cmd/rpc"
	"github.com/auric-network/auric/controller"
	"github.com/auric-network/auric/lib"
	"github.com/auric-network/auric/lib/crypto"
	"github.com/auric-network/auric/p2p"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

/*
	This file implements the command line interface of the node: key
	management, data directory initialization, running a node or an in-process
	localnet, and the staking client commands
*/

var (
	dataDir   string
	rpcURL    string
	localnet  int
	encrypted bool

	// gold amounts print with thousands separators
	printer = message.NewPrinter(language.English)
)

var rootCmd = &cobra.Command{
	Use:   "auric",
	Short: "auric is a proof-of-stake BFT blockchain node",
}

// Execute() runs the command tree
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", lib.DefaultDataDirPath(), "the directory holding config, keys, and genesis")
	rootCmd.PersistentFlags().StringVar(&rpcURL, "rpc-url", "http://localhost:42000", "the rpc url of the node to command")
	startCmd.Flags().IntVar(&localnet, "localnet", 0, "run N validators in one process on a loopback network")
	keygenCmd.Flags().BoolVar(&encrypted, "encrypted", false, "store the key password protected in the keystore")
	rootCmd.AddCommand(initCmd, keygenCmd, startCmd, stakeCmd, unstakeCmd, sendCmd, statusCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "write a default config file into the data directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(dataDir, os.ModePerm); err != nil {
			return err
		}
		config := lib.DefaultConfig()
		config.DataDirPath = dataDir
		if err := config.WriteToFile(filepath.Join(dataDir, lib.ConfigFilePath)); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", filepath.Join(dataDir, lib.ConfigFilePath))
		return nil
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "generate a validator key",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(dataDir, os.ModePerm); err != nil {
			return err
		}
		key, err := crypto.NewPrivateKey()
		if err != nil {
			return err
		}
		if encrypted {
			fmt.Print("passphrase: ")
			passphrase, er := term.ReadPassword(int(syscall.Stdin))
			fmt.Println()
			if er != nil {
				return er
			}
			ks, er := crypto.NewKeystoreFromFile(dataDir)
			if er != nil {
				return er
			}
			address, er := ks.ImportRaw(key.Bytes(), string(passphrase))
			if er != nil {
				return er
			}
			if er = ks.SaveToFile(dataDir); er != nil {
				return er
			}
			fmt.Printf("address: %s (keystore)\n", address)
			return nil
		}
		bz, er := json.MarshalIndent(key, "", "  ")
		if er != nil {
			return er
		}
		if er = os.WriteFile(filepath.Join(dataDir, lib.ValKeyPath), bz, 0600); er != nil {
			return er
		}
		fmt.Printf("address: %s\n", key.PublicKey().Address().String())
		return nil
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "run a validator node, or an in-process localnet with --localnet N",
	RunE: func(cmd *cobra.Command, args []string) error {
		if localnet > 0 {
			return runLocalnet(localnet)
		}
		return runNode()
	},
}

// runNode() starts a single validator from the data directory's config, key,
// and genesis files
func runNode() error {
	config, err := lib.NewConfigFromFile(filepath.Join(dataDir, lib.ConfigFilePath))
	if err != nil {
		return err
	}
	config.DataDirPath = dataDir
	log := lib.NewLogger(lib.LoggerConfig{Level: config.GetLogLevel()}, dataDir)
	key, err := loadValidatorKey(dataDir)
	if err != nil {
		return err
	}
	genesis, e := lib.NewGenesisFromFile(filepath.Join(dataDir, lib.GenesisFilePath))
	if e != nil {
		return e
	}
	config.ChainId = genesis.ChainId
	metrics := lib.NewMetrics(config.MetricsConfig, log)
	sb := p2p.NewSwitchboard(log)
	node, e := controller.New(config, key, genesis, sb, metrics, log)
	if e != nil {
		return e
	}
	return serve(config, log, metrics, node)
}

// runLocalnet() starts n validators with equal genesis stake on one loopback
// network; the first node serves the rpc
func runLocalnet(n int) error {
	config := lib.DefaultConfig()
	config.DataDirPath = dataDir
	log := lib.NewLogger(lib.LoggerConfig{Level: config.GetLogLevel()}, dataDir)
	keys := make([]crypto.PrivateKeyI, n)
	genesis := &lib.GenesisFile{
		ChainId:       config.ChainId,
		Balances:      make(map[string]uint64),
		StartingStake: make(map[string]uint64),
	}
	for i := range keys {
		key, err := crypto.NewPrivateKey()
		if err != nil {
			return err
		}
		keys[i] = key
		addr := key.PublicKey().Address().String()
		genesis.Balances[addr] = 1000
		genesis.StartingStake[addr] = 100
	}
	sb := p2p.NewSwitchboard(log)
	metrics := lib.NewMetrics(config.MetricsConfig, log)
	// build every node before starting any so the full validator set is
	// registered on the switchboard when round one begins
	nodes := make([]*controller.Controller, n)
	for i, key := range keys {
		nodeConfig := config
		nodeConfig.ChainId = genesis.ChainId
		node, err := controller.New(nodeConfig, key, genesis, sb, nil, log)
		if err != nil {
			return err
		}
		nodes[i] = node
	}
	group := new(errgroup.Group)
	for _, node := range nodes[1:] {
		node := node
		group.Go(func() error {
			node.Start()
			return nil
		})
		defer node.Stop()
	}
	if err := group.Wait(); err != nil {
		return err
	}
	log.Infof("localnet of %d validators running", n)
	return serve(config, log, metrics, nodes[0])
}

// serve() runs the node, its rpc, and its telemetry until interrupted
func serve(config lib.Config, log lib.LoggerI, metrics *lib.Metrics, node *controller.Controller) error {
	server := rpc.NewServer(node, config, log)
	node.Start()
	defer node.Stop()
	if metrics != nil {
		metrics.Start()
		defer metrics.Stop()
	}
	server.Start()
	defer server.Stop()
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt
	log.Info("shutting down")
	return nil
}

// loadValidatorKey() reads the plain key file or falls back to the keystore
// with a passphrase prompt
func loadValidatorKey(dir string) (crypto.PrivateKeyI, error) {
	path := filepath.Join(dir, lib.ValKeyPath)
	if bz, err := os.ReadFile(path); err == nil {
		key := new(crypto.ED25519PrivateKey)
		if er := json.Unmarshal(bz, key); er != nil {
			return nil, er
		}
		return key, nil
	}
	ks, err := crypto.NewKeystoreFromFile(dir)
	if err != nil {
		return nil, err
	}
	if len(ks.ByAddress) == 0 {
		return nil, fmt.Errorf("no validator key found in %s; run `auric keygen`", dir)
	}
	fmt.Print("passphrase: ")
	passphrase, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return nil, err
	}
	for addr := range ks.ByAddress {
		address, er := crypto.NewAddressFromString(addr)
		if er != nil {
			return nil, er
		}
		return ks.GetKey(address.Bytes(), string(passphrase))
	}
	return nil, fmt.Errorf("no validator key found")
}

var stakeCmd = &cobra.Command{
	Use:   "stake <amount>",
	Short: "bond gold from the node's account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		if e := rpc.NewClient(rpcURL).Stake(amount); e != nil {
			return e
		}
		printer.Printf("staked %d gold\n", amount)
		return nil
	},
}

var unstakeCmd = &cobra.Command{
	Use:   "unstake <amount>",
	Short: "schedule a release of the node's bonded gold",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		if e := rpc.NewClient(rpcURL).Unstake(amount); e != nil {
			return e
		}
		printer.Printf("unstaking %d gold after the unbonding delay\n", amount)
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <address> <amount>",
	Short: "transfer available gold to another account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return err
		}
		if e := rpc.NewClient(rpcURL).Send(args[0], amount); e != nil {
			return e
		}
		printer.Printf("sent %d gold to %s\n", amount, args[0])
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "print the node's height and validator set",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := rpc.NewClient(rpcURL)
		height, err := client.Height()
		if err != nil {
			return err
		}
		validators, err := client.Validators()
		if err != nil {
			return err
		}
		printer.Printf("height: %d\n", height)
		for _, v := range validators {
			printer.Printf("  %s  stake=%d  power=%d\n", v.Address, v.Stake, v.AccumPower)
		}
		return nil
	},
}
