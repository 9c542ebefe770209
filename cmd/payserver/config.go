package main

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/payengine/internal/logger"
)

const (
	defaultListenAddr   = "localhost:8080"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = "prod"
	defaultShards       = 4
)

type Config struct {
	// Address on which the payserver service will be run
	ListenAddr string

	// Default logging level
	LogLevel string

	// Environment: 'dev' logs text, 'prod' logs JSON
	Environment string

	// Secret key used to verify service tokens (see cmd/gensecret)
	SecretKey string

	// Number of pipeline shards used for submitted batches and Kafka feeds
	Shards int

	// Kafka feed; consumed continuously when a topic is configured
	KafkaBrokers    []string
	KafkaTopic      string
	KafkaPartitions int

	// When set the server does not start: a service token for the named
	// caller is printed instead
	IssueToken string
}

func NewConfig() *Config {
	return &Config{
		ListenAddr:      defaultListenAddr,
		LogLevel:        defaultLoggingLevel,
		Environment:     defaultEnvironment,
		Shards:          defaultShards,
		KafkaPartitions: 1,
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
	setList := func(o *[]string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = strings.Split(value, ",")
			}
		}
	}

	envMap := map[string]func(string){
		"PAYSERVER_ADDRESS":          setString(&c.ListenAddr),
		"PAYSERVER_LOG_LEVEL":        setString(&c.LogLevel),
		"PAYSERVER_ENVIRONMENT":      setString(&c.Environment),
		"PAYSERVER_SECRET_KEY":       setString(&c.SecretKey),
		"PAYSERVER_SHARDS":           setInt(&c.Shards),
		"PAYSERVER_KAFKA_BROKERS":    setList(&c.KafkaBrokers),
		"PAYSERVER_KAFKA_TOPIC":      setString(&c.KafkaTopic),
		"PAYSERVER_KAFKA_PARTITIONS": setInt(&c.KafkaPartitions),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("payserver", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key for service tokens")
	fs.IntVar(&c.Shards, "shards", c.Shards, "Number of pipeline shards")
	fs.StringSliceVar(&c.KafkaBrokers, "kafka-brokers", c.KafkaBrokers, "Kafka broker addresses")
	fs.StringVar(&c.KafkaTopic, "kafka-topic", c.KafkaTopic, "Kafka topic with transaction records")
	fs.IntVar(&c.KafkaPartitions, "kafka-partitions", c.KafkaPartitions, "Number of Kafka partitions to consume")
	fs.StringVar(&c.IssueToken, "issue-token", c.IssueToken, "Print a service token for the named caller and exit")

	return fs.Parse(args)
}
