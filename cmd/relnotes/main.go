// relnotes renders release notes from Handlebars templates on the command
// line and manages the templates stored for the worker.
//
// Usage:
//
//	relnotes [--log-level LEVEL] [--redis-addr ADDR] <command> [flags]
//
// Commands:
//
//	render    Render a template against a data file
//	check     Check that templates compile
//	example   Write an example data file and template
//	template  Manage templates stored in Redis
package main

import (
	"fmt"
	"os"

	"github.com/aescanero/dago-node-relnotes/internal/cli"
	"github.com/aescanero/dago-node-relnotes/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Version is set at build time
var Version = "dev"

func main() {
	var (
		logLevel       string
		redisAddr      string
		redisPassword  string
		redisDB        int
		templatePrefix string
	)

	rootCmd := &cobra.Command{
		Use:           "relnotes",
		Short:         "Release notes renderer",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis-addr", envOr("REDIS_ADDR", "localhost:6379"), "Redis address for stored templates")
	rootCmd.PersistentFlags().StringVar(&redisPassword, "redis-pass", os.Getenv("REDIS_PASS"), "Redis password")
	rootCmd.PersistentFlags().IntVar(&redisDB, "redis-db", 0, "Redis database")
	rootCmd.PersistentFlags().StringVar(&templatePrefix, "template-prefix", store.DefaultTemplatePrefix, "Key prefix of stored templates")

	var logger *zap.Logger
	loggerFn := func() *zap.Logger {
		if logger == nil {
			logger = newLogger(logLevel)
		}
		return logger
	}

	var redisClient *redis.Client
	storeFn := func() *store.TemplateStore {
		if redisClient == nil {
			redisClient = redis.NewClient(&redis.Options{
				Addr:     redisAddr,
				Password: redisPassword,
				DB:       redisDB,
			})
		}
		return store.NewTemplateStore(redisClient, templatePrefix, loggerFn())
	}

	rootCmd.AddCommand(
		cli.NewRenderCmd(loggerFn),
		cli.NewCheckCmd(loggerFn),
		cli.NewExampleCmd(),
		cli.NewTemplateCmd(storeFn),
	)

	err := rootCmd.Execute()

	if redisClient != nil {
		_ = redisClient.Close()
	}
	if logger != nil {
		_ = logger.Sync()
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newLogger builds a console logger on stderr so stdout only carries notes
func newLogger(level string) *zap.Logger {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		zapLevel = zapcore.WarnLevel
	}

	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	logger, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
