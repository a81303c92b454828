package main

import (
	"cvr-league/config"
	"cvr-league/internal/authz"
	"cvr-league/internal/bot"
	"cvr-league/internal/db"
	"cvr-league/internal/engine"
	"cvr-league/internal/identity"
	"cvr-league/internal/logger"
	"cvr-league/internal/matches"
	"cvr-league/internal/platform"
	"cvr-league/internal/rolesync"
	"cvr-league/internal/roster"
	"cvr-league/internal/web"
)

func main() {
	log := logger.New("cvr-league")
	defer log.Sync()

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalw("config load failed", "error", err)
	}

	database, err := db.InitDatabase(cfg)
	if err != nil {
		log.Fatalw("database init failed", "error", err)
	}

	store := roster.NewGormStore(database)
	policy := authz.NewPolicy(cfg)
	plat := platform.NewClient(cfg.Platform, log)

	worker := rolesync.NewWorker(database, plat, log)
	if err := worker.Start(cfg.SyncEvery); err != nil {
		log.Fatalw("role sync worker failed to start", "error", err)
	}
	defer worker.Stop()

	eng := engine.New(store, policy, log)
	eng.OnApproved(worker.Nudge)

	ident := identity.NewResolver(cfg.Identity, log)
	msvc := matches.NewService(database, policy, log)

	go func() {
		if err := web.NewServer(store, msvc, log).Serve(cfg.WebAddr); err != nil {
			log.Errorw("web api stopped", "error", err)
		}
	}()

	b, err := bot.New(cfg, store, eng, msvc, ident, plat, policy, log)
	if err != nil {
		log.Fatalw("bot init failed", "error", err)
	}
	b.Run()
}
