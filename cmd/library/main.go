package main

import (
	stdLog "log"
	"time"

	"github.com/joho/godotenv"
	"github.com/openshelf/library-service/library/app"
	"github.com/openshelf/library-service/library/config"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := godotenv.Load(); err != nil {
		stdLog.Println("load envs from .env ", err)
	}
	cfg := config.NewConfig(
		config.WithLogLevel(zapcore.DebugLevel),
		config.WithWriteTimeout(time.Minute),
	)

	app.Run(cfg)
}
