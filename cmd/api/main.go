package main

import (
	"log"
	"os"

	"maxtrade/cmd"
	"maxtrade/internal/config"
)

func main() {
	cfg, err := config.Load(os.Getenv("MAXTRADE_CONFIG"))
	if err != nil {
		log.Fatal(err)
	}
	deps, err := cmd.InitializeDependencies(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer deps.Close()

	deps.Logger.Infof("commit %s listening on %d", os.Getenv("commit_hash"), cfg.Server.Port)
	if err := deps.ApiHandler.StartApi(cfg.Server.Port); err != nil {
		deps.Logger.Fatal(err)
	}
}
