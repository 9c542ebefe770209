package main

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/payengine/internal/logger"
	"github.com/nkiryanov/payengine/internal/service/batch"
)

const (
	// Errors only by default so skipped lines stay silent and stdout stays
	// a clean snapshot
	defaultLogLevel   = logger.LevelError
	defaultShards     = 1
	defaultCombinator = batch.CombinatorMerge
	defaultAssignment = batch.AssignmentRoundRobin
)

type Config struct {
	// Logging level for diagnostics on stderr
	LogLevel string

	// Number of parallel shard workers
	Shards int

	// How streams multiplexed on one shard are consumed
	Combinator string

	// How input files are assigned to shards
	Assignment string

	// Stop the whole run on the first error instead of skipping
	AbortOnError bool

	// Do not even count skipped lines to the log
	Quiet bool

	// Input CSV files, one stream each
	Files []string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:   defaultLogLevel,
		Shards:     defaultShards,
		Combinator: defaultCombinator,
		Assignment: defaultAssignment,
	}
}

// Load variables from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}
	setInt := func(o *int) func(value string) {
		return func(value string) {
			if parsed, err := strconv.Atoi(value); err == nil {
				*o = parsed
			}
		}
	}

	envMap := map[string]func(string){
		"PAYENGINE_LOG_LEVEL":  setString(&c.LogLevel),
		"PAYENGINE_SHARDS":     setInt(&c.Shards),
		"PAYENGINE_COMBINATOR": setString(&c.Combinator),
		"PAYENGINE_ASSIGNMENT": setString(&c.Assignment),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("payengine", pflag.ContinueOnError)

	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.IntVarP(&c.Shards, "shards", "s", c.Shards, "Number of parallel shard workers")
	fs.StringVar(&c.Combinator, "combinator", c.Combinator, "Stream combinator (merge, chain)")
	fs.StringVar(&c.Assignment, "assignment", c.Assignment, "Stream to shard assignment (round-robin, sequential)")
	fs.BoolVar(&c.AbortOnError, "abort-on-error", c.AbortOnError, "Stop on the first bad line instead of skipping it")
	fs.BoolVarP(&c.Quiet, "quiet", "q", c.Quiet, "Skip bad lines without logging them")

	if err := fs.Parse(args); err != nil {
		return err
	}

	c.Files = fs.Args()
	return nil
}
