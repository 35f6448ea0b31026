// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Copyright (C) 2015-2022 The Lightning Network Developers

package chanrescue

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/jessevdk/go-flags"
	"github.com/lightningnetwork/chanrescue/build"
	"github.com/lightningnetwork/chanrescue/chanbackup"
	"github.com/lightningnetwork/chanrescue/peer"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	defaultConfigFilename = "chanrescue.conf"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "chanrescue.log"
	defaultOutboxDirname  = "outbox"
	defaultSendTimeout    = 30 * time.Second
	defaultSendBurst      = 10
)

var (
	// DefaultRescueDir is the default directory where chanrescue keeps its
	// config, logs and outbox.
	DefaultRescueDir = btcutil.AppDataDir("chanrescue", false)

	// DefaultConfigFile is the default full path of chanrescue's
	// configuration file.
	DefaultConfigFile = filepath.Join(DefaultRescueDir, defaultConfigFilename)

	defaultLogDir    = filepath.Join(DefaultRescueDir, defaultLogDirname)
	defaultOutboxDir = filepath.Join(DefaultRescueDir, defaultOutboxDirname)

	// networkParams maps the accepted --network values to their chain
	// parameters.
	networkParams = map[string]*chaincfg.Params{
		"mainnet": &chaincfg.MainNetParams,
		"testnet": &chaincfg.TestNet3Params,
		"signet":  &chaincfg.SigNetParams,
		"regtest": &chaincfg.RegressionNetParams,
		"simnet":  &chaincfg.SimNetParams,
	}
)

// ManualClose is a force close request given on the command line rather than
// read from a backup file.
type ManualClose struct {
	// Peer is the node that should force close the channel.
	Peer *btcec.PublicKey

	// ChanPoint is the funding outpoint of the channel.
	ChanPoint wire.OutPoint
}

// Config defines the configuration options for chanrescue.
//
// See LoadConfig for further details regarding the configuration
// loading+parsing process.
//
//nolint:lll
type Config struct {
	ConfigFile string `long:"configfile" description:"Path to configuration file"`

	MultiFile    string `long:"multifile" description:"Path to a packed multi-channel backup (channel.backup) whose channels should be force closed"`
	BackupKeyHex string `long:"backupkey" description:"Hex encoded 33-byte compressed public key the channel backup was encrypted with"`
	Network      string `long:"network" description:"Only recover channels of backups made for this chain" choice:"mainnet" choice:"testnet" choice:"signet" choice:"regtest" choice:"simnet"`

	Peers      []string `long:"peer" description:"Hex encoded identity key of a peer to request a force close from. Must be paired with a --chanpoint"`
	ChanPoints []string `long:"chanpoint" description:"Funding outpoint (txid:index) of the channel to close with the --peer at the same position"`

	OutboxDir          string        `long:"outboxdir" description:"Directory the forged messages are written to, one file per peer"`
	FlushInterval      time.Duration `long:"flushinterval" description:"How often queued messages are flushed to the outbox"`
	SendTimeout        time.Duration `long:"sendtimeout" description:"Time limit for handing a single message to the outbox"`
	MaxConcurrentPeers int           `long:"maxconcurrentpeers" description:"Maximum number of peers written to at the same time"`
	SendInterval       time.Duration `long:"sendinterval" description:"Minimum time between two messages once the send burst is used up, 0 disables rate limiting"`
	SendBurst          int           `long:"sendburst" description:"Number of messages that may be written back to back before sendinterval applies"`

	LogDir     string `long:"logdir" description:"Directory to log output."`
	DebugLevel string `long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <global-level>,<subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`

	LogConfig *build.LogConfig `group:"logging" namespace:"logging"`

	// LogRotator is the rotating log file writer. It is nil if file
	// logging is disabled.
	LogRotator *build.RotatingLogWriter

	// SubLogMgr holds every subsystem logger, so their levels can be
	// changed.
	SubLogMgr *build.SubLoggerManager

	backupKey    *btcec.PublicKey
	chainFilter  fn.Option[chainhash.Hash]
	manualCloses []ManualClose
}

// DefaultConfig returns all default values for the Config struct.
func DefaultConfig() Config {
	return Config{
		ConfigFile:         DefaultConfigFile,
		OutboxDir:          defaultOutboxDir,
		FlushInterval:      peer.DefaultFlushInterval,
		SendTimeout:        defaultSendTimeout,
		MaxConcurrentPeers: peer.DefaultMaxConcurrentPeers,
		SendBurst:          defaultSendBurst,
		LogDir:             defaultLogDir,
		DebugLevel:         build.LogLevel,
		LogConfig:          build.DefaultLogConfig(),
		chainFilter:        fn.None[chainhash.Hash](),
	}
}

// BackupKey returns the parsed backup encryption base key, if one was given.
func (c *Config) BackupKey() fn.Option[*btcec.PublicKey] {
	if c.backupKey == nil {
		return fn.None[*btcec.PublicKey]()
	}

	return fn.Some(c.backupKey)
}

// ChainFilter returns the genesis hash of the chain backups are restricted
// to, if any.
func (c *Config) ChainFilter() fn.Option[chainhash.Hash] {
	return c.chainFilter
}

// ManualCloses returns the force close requests given on the command line.
func (c *Config) ManualCloses() []ManualClose {
	return c.manualCloses
}

// KeyRing returns the key ring backups are decrypted with.
func (c *Config) KeyRing() chanbackup.KeyRing {
	return &chanbackup.StaticKeyRing{BaseKey: c.backupKey}
}

// LoadConfig builds the config from defaults, the config file and args, in
// that order of increasing precedence. The command line is parsed twice: once
// to learn which config file to read, and once more after the file so its
// options win over the file's.
func LoadConfig(args []string) (*Config, error) {
	preCfg := DefaultConfig()
	if err := parseArgs(&preCfg, args); err != nil {
		return nil, err
	}

	cfg := preCfg

	// Repeated options append, so drop the ones the first pass collected
	// or they'd show up twice.
	cfg.Peers, cfg.ChanPoints = nil, nil

	// A missing config file is fine, a broken one isn't.
	configFile := CleanAndExpandPath(preCfg.ConfigFile)
	fileErr := flags.IniParse(configFile, &cfg)
	if _, ok := fileErr.(*flags.IniError); ok {
		return nil, fileErr
	}

	if err := parseArgs(&cfg, args); err != nil {
		return nil, err
	}

	appName := strings.TrimSuffix(
		filepath.Base(os.Args[0]), filepath.Ext(os.Args[0]),
	)
	validCfg, err := ValidateConfig(
		cfg, fmt.Sprintf("Use %s -h to show usage", appName),
	)
	if err != nil {
		return nil, err
	}

	// Only complain about the config file once logging is set up and we
	// know we're not just printing help.
	if fileErr != nil {
		rscuLog.Warnf("Unable to read config file %v: %v", configFile,
			fileErr)
	}

	return validCfg, nil
}

// parseArgs parses the command line options into cfg.
func parseArgs(cfg *Config, args []string) error {
	_, err := flags.NewParser(cfg, flags.Default).ParseArgs(args)
	return err
}

// ValidateConfig checks cfg, parses the keys and outpoints given as strings,
// and sets up logging. Paths are expanded and cleaned. The returned config is
// ready to be handed to Main.
func ValidateConfig(cfg Config, usageMessage string) (*Config, error) {
	// funcName is used to print out the file name of the function.
	funcName := "ValidateConfig"

	// mkErr creates a new error with the usage message appended.
	mkErr := func(format string, args ...interface{}) error {
		err := fmt.Errorf(funcName+": "+format, args...)
		if usageMessage == "" {
			return err
		}

		return fmt.Errorf("%w\n%s", err, usageMessage)
	}

	cfg.ConfigFile = CleanAndExpandPath(cfg.ConfigFile)
	cfg.MultiFile = CleanAndExpandPath(cfg.MultiFile)
	cfg.OutboxDir = CleanAndExpandPath(cfg.OutboxDir)
	cfg.LogDir = CleanAndExpandPath(cfg.LogDir)

	if cfg.OutboxDir == "" {
		return nil, mkErr("outboxdir must be set")
	}
	if cfg.FlushInterval <= 0 {
		return nil, mkErr("flushinterval must be positive, got %v",
			cfg.FlushInterval)
	}
	if cfg.SendTimeout < 0 {
		return nil, mkErr("sendtimeout must not be negative, got %v",
			cfg.SendTimeout)
	}
	if cfg.SendInterval < 0 || cfg.SendBurst < 0 {
		return nil, mkErr("sendinterval and sendburst must not be "+
			"negative, got %v and %d", cfg.SendInterval,
			cfg.SendBurst)
	}
	if cfg.MaxConcurrentPeers <= 0 {
		return nil, mkErr("maxconcurrentpeers must be positive, got %d",
			cfg.MaxConcurrentPeers)
	}

	if cfg.BackupKeyHex != "" {
		key, err := parsePubKey(cfg.BackupKeyHex)
		if err != nil {
			return nil, mkErr("invalid backupkey: %v", err)
		}
		cfg.backupKey = key
	}
	if cfg.MultiFile != "" && cfg.backupKey == nil {
		return nil, mkErr("backupkey must be set to decrypt %v",
			cfg.MultiFile)
	}

	cfg.chainFilter = fn.None[chainhash.Hash]()
	if cfg.Network != "" {
		params, ok := networkParams[cfg.Network]
		if !ok {
			return nil, mkErr("unknown network: %v", cfg.Network)
		}
		cfg.chainFilter = fn.Some(*params.GenesisHash)
	}

	if len(cfg.Peers) != len(cfg.ChanPoints) {
		return nil, mkErr("every --peer needs a matching --chanpoint, "+
			"got %d peers and %d channel points", len(cfg.Peers),
			len(cfg.ChanPoints))
	}

	cfg.manualCloses = make([]ManualClose, 0, len(cfg.Peers))
	for i := range cfg.Peers {
		peerKey, err := parsePubKey(cfg.Peers[i])
		if err != nil {
			return nil, mkErr("invalid peer %v: %v", cfg.Peers[i],
				err)
		}

		chanPoint, err := wire.NewOutPointFromString(cfg.ChanPoints[i])
		if err != nil {
			return nil, mkErr("invalid chanpoint %v: %v",
				cfg.ChanPoints[i], err)
		}

		cfg.manualCloses = append(cfg.manualCloses, ManualClose{
			Peer:      peerKey,
			ChanPoint: *chanPoint,
		})
	}

	if cfg.MultiFile == "" && len(cfg.manualCloses) == 0 {
		return nil, mkErr("nothing to recover, either multifile or " +
			"peer/chanpoint pairs must be set")
	}

	if err := cfg.LogConfig.Validate(); err != nil {
		return nil, mkErr("error validating logging config: %w", err)
	}

	// Initialize the log rotator, unless file logging was switched off.
	cfg.LogRotator = nil
	if !cfg.LogConfig.File.Disable {
		cfg.LogRotator = build.NewRotatingLogWriter()
		err := cfg.LogRotator.InitLogRotator(
			cfg.LogConfig.File,
			filepath.Join(cfg.LogDir, defaultLogFilename),
		)
		if err != nil {
			return nil, mkErr("log rotation setup failed: %v", err)
		}
	}

	cfg.SubLogMgr = build.NewSubLoggerManager(
		build.NewDefaultLogHandler(cfg.LogConfig, cfg.LogRotator),
	)
	SetupLoggers(cfg.SubLogMgr)

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems",
			cfg.SubLogMgr.SupportedSubsystems())
		os.Exit(0)
	}

	// Parse, validate, and set debug log level(s).
	err := build.ParseAndSetDebugLevels(cfg.DebugLevel, cfg.SubLogMgr)
	if err != nil {
		return nil, mkErr("error parsing debug level: %v", err)
	}

	return &cfg, nil
}

// parsePubKey parses a hex encoded compressed public key.
func parsePubKey(s string) (*btcec.PublicKey, error) {
	keyBytes, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(keyBytes) != btcec.PubKeyBytesLenCompressed {
		return nil, fmt.Errorf("expected %d bytes, got %d",
			btcec.PubKeyBytesLenCompressed, len(keyBytes))
	}

	return btcec.ParsePubKey(keyBytes)
}

// CleanAndExpandPath expands a leading ~ to the home directory of the current
// user and any $VARIABLE in path, then cleans the result. Windows style
// %VARIABLE% isn't expanded.
func CleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	if rest, ok := strings.CutPrefix(path, "~"); ok {
		path = homeDir() + rest
	}

	return filepath.Clean(os.ExpandEnv(path))
}

// homeDir returns the home directory of the current user, falling back to
// $HOME if the user database can't be queried.
func homeDir() string {
	if u, err := user.Current(); err == nil {
		return u.HomeDir
	}

	return os.Getenv("HOME")
}
