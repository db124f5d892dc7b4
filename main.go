package main

import (
	"log"

	"github.com/roadpulse/roadpulse/config"
	"github.com/roadpulse/roadpulse/db"
	"github.com/roadpulse/roadpulse/mailingservices"
	"github.com/roadpulse/roadpulse/server"
	"github.com/roadpulse/roadpulse/services"
)

func main() {
	conf, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	mailgunClient := &mailingservices.Mailgun{}
	mailgunClient.Init(conf)

	gormDB := db.GetDB(conf)
	authRepo := db.NewAuthRepo(gormDB)
	reportRepo := db.NewReportRepo(gormDB)
	mediaRepo := db.NewMediaRepo(conf)

	authService := services.NewAuthService(authRepo, mailgunClient, conf)
	mediaService := services.NewMediaService(mediaRepo, conf)
	reportService := services.NewReportService(reportRepo, authRepo, mediaService, conf)

	s := &server.Server{
		Mail:             mailgunClient,
		Config:           conf,
		AuthRepository:   authRepo,
		AuthService:      authService,
		ReportRepository: reportRepo,
		ReportService:    reportService,
		MediaRepository:  mediaRepo,
		MediaService:     mediaService,
		DB:               *gormDB,
	}

	s.Start()
}
