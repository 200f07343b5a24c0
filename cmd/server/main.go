package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/config"
	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/media"
	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/ratelimit"
	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/server"
	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/user"
	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/ws"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &config.Config{}
	cobra.CheckErr(config.NewCommand(cfg, run).ExecuteContext(ctx))
}

func run(ctx context.Context, cfg *config.Config) error {
	setupLogging(cfg)

	users, err := newDirectory(ctx, cfg)
	if err != nil {
		return err
	}
	suggester, err := newSuggester(cfg)
	if err != nil {
		return err
	}

	opts := []server.Option{
		server.WithDirectory(users),
		server.WithSuggester(suggester),
		server.WithSessionTTL(cfg.SessionTTL),
		server.WithPublicURL(cfg.PublicURL),
		server.WithAllowedOrigins(cfg.AllowedOrigins...),
		server.WithConnOptions(ws.WithMaxConns(cfg.MaxConns), ws.WithIdleTimeout(cfg.IdleTimeout)),
		server.WithMessageLimiter(ratelimit.New(cfg.MessageRate, time.Minute)),
		server.WithConnectLimiter(ratelimit.New(cfg.ConnectRate, time.Minute)),
	}

	srv := server.New(cfg.Addr(), opts...)
	return srv.Run(ctx)
}

func setupLogging(cfg *config.Config) {
	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp: true,
		})
	}
	if cfg.Verbose {
		log.SetLevel(log.DebugLevel)
	}
}

// newDirectory picks the profile store: Redis, DynamoDB or memory.
func newDirectory(ctx context.Context, cfg *config.Config) (user.Directory, error) {
	switch {
	case cfg.RedisAddr != "":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		log.WithField("addr", cfg.RedisAddr).Info("profiles stored in redis")
		return user.NewRedisDirectory(rdb), nil

	case cfg.DynamoTable != "":
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.DynamoRegion != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.DynamoRegion))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		log.WithField("table", cfg.DynamoTable).Info("profiles stored in dynamodb")
		return user.NewDynamoDirectory(dynamodb.NewFromConfig(awsCfg), cfg.DynamoTable), nil
	}

	log.Warn("profiles kept in memory and lost on restart")
	return user.NewMemoryDirectory(), nil
}

// newSuggester loads the catalog and, if configured, puts the suggestion
// service in front of it.
func newSuggester(cfg *config.Config) (media.Suggester, error) {
	catalog := media.DefaultCatalog()
	if cfg.Catalog != "" {
		c, err := media.LoadCatalog(cfg.Catalog)
		if err != nil {
			return nil, err
		}
		catalog = c
	}
	if cfg.MediaURL == "" {
		return catalog, nil
	}
	return media.NewClient(cfg.MediaURL, cfg.MediaTimeout, catalog), nil
}
