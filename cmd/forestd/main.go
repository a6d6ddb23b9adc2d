// Command forestd runs the tree storage service's HTTP surface.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/go-bumbu/forest"
	"github.com/go-bumbu/forest/config"
	"github.com/go-bumbu/forest/httpapi"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "forestd",
		Short: "Multi-tenant hierarchical tree storage service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v)
		},
	}

	flags := cmd.Flags()
	flags.String("database-url", "", "database DSN, e.g. sqlite://forest.db")
	flags.String("environment", "", "development|production")
	flags.String("host", "", "listen host")
	flags.Int("port", 0, "listen port")
	flags.StringSlice("cors-origins", nil, "allowed CORS origins")

	_ = v.BindPFlag("database_url", flags.Lookup("database-url"))
	_ = v.BindPFlag("environment", flags.Lookup("environment"))
	_ = v.BindPFlag("host", flags.Lookup("host"))
	_ = v.BindPFlag("port", flags.Lookup("port"))
	_ = v.BindPFlag("cors_origins", flags.Lookup("cors-origins"))

	return cmd
}

func run(v *viper.Viper) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	settings, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Info("starting forestd",
		zap.String("environment", settings.Environment),
		zap.String("database_url", settings.DatabaseURL),
	)

	db, err := forest.Open(settings.DatabaseURL, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormLogLevel(settings)),
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	logger.Info("migration complete")

	svc := forest.NewService(db)
	router := httpapi.NewRouter(svc, httpapi.Options{
		CORSOrigins: settings.CORSOrigins,
		Production:  settings.IsProduction(),
	})

	addr := fmt.Sprintf("%s:%d", settings.Host, settings.Port)
	logger.Info("listening", zap.String("addr", addr))
	return router.Run(addr)
}

func gormLogLevel(settings config.Settings) gormlogger.LogLevel {
	if settings.IsProduction() {
		return gormlogger.Error
	}
	return gormlogger.Warn
}

func newLogger() (*zap.Logger, error) {
	return zap.NewProduction()
}
