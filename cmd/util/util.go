package util

import (
	"strconv"
	"strings"
	"time"

	"github.com/Kain-Deterick/VK-Internship/lib/common"
	"github.com/Kain-Deterick/VK-Internship/lib/db"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// --------------------------------------------------------------------------
// Flags and configuration
// --------------------------------------------------------------------------

// SetupStoreFlags adds the store configuration flags to a command
func SetupStoreFlags(cmd *cobra.Command) {
	key := "config"
	cmd.PersistentFlags().String(key, "", WrapString("Optional config file (yaml, json or toml). It may contain a 'seed' list of {key, value, ttl} records"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "info", WrapString("Log level (debug, info, warn, error)"))

	key = "namespace"
	cmd.PersistentFlags().String(key, "default", WrapString("Namespace of the store to operate on"))

	key = "seed"
	cmd.PersistentFlags().String(key, "", WrapString("Records loaded into every new store, comma separated as key=value or key=value@ttl"))

	key = "sweep-interval"
	cmd.PersistentFlags().Duration(key, time.Second, WrapString("Interval of the background expiry sweeper, 0 disables it"))

	key = "sweep-mode"
	cmd.PersistentFlags().String(key, string(common.SweepModeIncremental), WrapString("How the sweeper reclaims expired entries (incremental, batch)"))

	key = "sweep-limit"
	cmd.PersistentFlags().Int(key, 100, WrapString("Max entries reclaimed per tick in incremental mode"))

	key = "virtual-clock"
	cmd.PersistentFlags().Bool(key, false, WrapString("Use a virtual clock that only moves with the shell 'advance' command"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("kvstorage")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper and reads the config file if one is set
func BindCommandFlags(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "reading config file %s", path)
		}
	}
	return nil
}

// GetConfig reads the configuration from viper, initializes the loggers and
// validates the result
func GetConfig() (*common.Config, error) {
	mode, err := common.ParseSweepMode(viper.GetString("sweep-mode"))
	if err != nil {
		return nil, err
	}

	conf := &common.Config{
		LogLevel:      viper.GetString("log-level"),
		Namespace:     viper.GetString("namespace"),
		SweepInterval: viper.GetDuration("sweep-interval"),
		SweepMode:     mode,
		SweepLimit:    viper.GetInt("sweep-limit"),
		VirtualClock:  viper.GetBool("virtual-clock"),
	}

	// records from the config file come first, the flag can override them
	if conf.Seed, err = readSeedRecords(); err != nil {
		return nil, err
	}
	flagSeed, err := ParseSeed(viper.GetString("seed"))
	if err != nil {
		return nil, errors.Wrap(err, "seed")
	}
	conf.Seed = append(conf.Seed, flagSeed...)

	if err := conf.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	if err := common.InitLoggers(conf.LogLevel); err != nil {
		return nil, err
	}

	return conf, nil
}

// seedRecord is the config file representation of a db.Record
type seedRecord struct {
	Key   string `mapstructure:"key"`
	Value string `mapstructure:"value"`
	TTL   uint32 `mapstructure:"ttl"`
}

// readSeedRecords reads the 'seed' list of the config file
func readSeedRecords() ([]db.Record, error) {
	if !viper.InConfig("seed") {
		return nil, nil
	}

	var raw []seedRecord
	if err := viper.UnmarshalKey("seed", &raw); err != nil {
		return nil, errors.Wrap(err, "decoding seed records")
	}

	records := make([]db.Record, len(raw))
	for i, r := range raw {
		records[i] = db.Record{Key: r.Key, Value: []byte(r.Value), TTL: r.TTL}
	}
	return records, nil
}

// ParseSeed parses comma separated records of the form key=value or
// key=value@ttl. Only a trailing @ followed by digits is read as the ttl, any
// other @ belongs to the value. An empty string yields no records.
func ParseSeed(s string) ([]db.Record, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	records := make([]db.Record, 0, len(parts))
	for i, part := range parts {
		key, rest, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || key == "" {
			return nil, errors.Errorf("record %d (%q): expected key=value[@ttl]", i, part)
		}

		value := rest
		var ttl uint32
		if at := strings.LastIndex(rest, "@"); at >= 0 && isDigits(rest[at+1:]) {
			parsed, err := strconv.ParseUint(rest[at+1:], 10, 32)
			if err != nil {
				return nil, errors.Wrapf(err, "record %d (%q): invalid ttl", i, part)
			}
			value, ttl = rest[:at], uint32(parsed)
		}

		records = append(records, db.Record{Key: key, Value: []byte(value), TTL: ttl})
	}
	return records, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
