package main

import (
	"strings"

	"github.com/navijation/honeytable/storage/honey"
	"github.com/navijation/honeytable/util"
	"github.com/navijation/honeytable/util/log"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v3"
)

const envPrefix = "HONEY"

const (
	KeyTableCompressMin    = "table.compress_min"
	KeyTableIndexType      = "table.index_type"
	KeyTableIndexBlockSize = "table.index_block_size"

	KeyLogFilename   = "log.filename"
	KeyLogLevel      = "log.level"
	KeyLogMaxSize    = "log.max_size"
	KeyLogMaxBackups = "log.max_backups"
	KeyLogMaxAge     = "log.max_age"
	KeyLogCompress   = "log.compress"
	KeyLogConsole    = "log.console"
)

const (
	DefaultLogLevel      = "warn"
	DefaultLogMaxSize    = 100 // MB
	DefaultLogMaxBackups = 5
	DefaultLogMaxAge     = 30 // days
)

type Config struct {
	Table TableConfig `mapstructure:"table"`
	Log   log.Config  `mapstructure:"log"`
}

// TableConfig holds the settings of tables created by construct and merge.
type TableConfig struct {
	CompressMin    uint32 `mapstructure:"compress_min"`
	IndexType      string `mapstructure:"index_type"`
	IndexBlockSize int64  `mapstructure:"index_block_size"`
}

// loadConfig reads defaults, then the optional config file, then HONEY_* environment
// variables (HONEY_TABLE_INDEX_TYPE for table.index_type).
func loadConfig(configPath string) (out Config, _ error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return out, errors.Wrap(err, "failed to read config file")
		}
	}

	if err := v.Unmarshal(&out); err != nil {
		return out, errors.Wrap(err, "failed to unmarshal config")
	}
	return out, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyTableCompressMin, honey.DefaultCompressMin)
	v.SetDefault(KeyTableIndexType, honey.DefaultIndexType.String())
	v.SetDefault(KeyTableIndexBlockSize, honey.DefaultIndexBlockSize)

	v.SetDefault(KeyLogFilename, "")
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogMaxSize, DefaultLogMaxSize)
	v.SetDefault(KeyLogMaxBackups, DefaultLogMaxBackups)
	v.SetDefault(KeyLogMaxAge, DefaultLogMaxAge)
	v.SetDefault(KeyLogCompress, true)
	v.SetDefault(KeyLogConsole, true)
}

// setup loads the configuration named by --config and initializes logging.
func setup(cmd *cli.Command) (Config, error) {
	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return cfg, err
	}
	if cmd.Bool("verbose") {
		cfg.Log.Level = "debug"
	}
	log.Init(cfg.Log)
	return cfg, nil
}

// createArgs turns the table configuration into creation arguments. Flags given on the
// command line win over the configuration.
func createArgs(cmd *cli.Command, cfg TableConfig, path string) (out honey.CreateArgs, _ error) {
	if cmd.IsSet("compress-min") {
		cfg.CompressMin = uint32(cmd.Uint("compress-min"))
	}
	if cmd.IsSet("index-type") {
		cfg.IndexType = cmd.String("index-type")
	}
	if cmd.IsSet("index-block-size") {
		cfg.IndexBlockSize = cmd.Int("index-block-size")
	}

	indexType, err := honey.ParseIndexType(cfg.IndexType)
	if err != nil {
		return out, err
	}
	return honey.CreateArgs{
		Path:           path,
		CompressMin:    util.Some(cfg.CompressMin),
		IndexType:      util.Some(indexType),
		IndexBlockSize: util.Some(cfg.IndexBlockSize),
	}, nil
}

// checkDest refuses to overwrite an existing file unless --force is given.
func checkDest(cmd *cli.Command, path string) error {
	if cmd.Bool("force") {
		return nil
	}
	exists, err := util.FileExists(path)
	if err != nil {
		return errors.Wrapf(err, "failed to stat %q", path)
	}
	if exists {
		return errors.Errorf("%q already exists; pass --force to overwrite it", path)
	}
	return nil
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "YAML, TOML or JSON file with table and log settings",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "log at debug level",
		},
	}
}

func tableFlags() []cli.Flag {
	return []cli.Flag{
		&cli.UintFlag{
			Name:  "compress-min",
			Usage: "compress values larger than this many bytes; 0 disables compression",
		},
		&cli.StringFlag{
			Name:  "index-type",
			Usage: "index encoding: array, binary-chop or skiplist",
		},
		&cli.IntFlag{
			Name:  "index-block-size",
			Usage: "approximate bytes of entries between index points",
		},
		&cli.BoolFlag{
			Name:  "force",
			Usage: "overwrite the destination if it exists",
		},
	}
}
