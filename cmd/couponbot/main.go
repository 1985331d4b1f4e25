package main

import (
	"log"

	"github.com/m3rciful/couponbot/core/cmd"
	"github.com/m3rciful/couponbot/internal/bot"
	"github.com/m3rciful/couponbot/internal/config"
)

func main() {
	err := cmd.Run(cmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: func(c cmd.ConfigCarrier) (cmd.TelegramApp, error) {
			return bot.Bootstrap(c.(*config.Config))
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
