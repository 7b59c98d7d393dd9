package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/stashbox/stashbox-backend-go/internal/config"
	appHTTP "github.com/stashbox/stashbox-backend-go/internal/handler/http"
	"github.com/stashbox/stashbox-backend-go/internal/pkg/cron"
	"github.com/stashbox/stashbox-backend-go/internal/pkg/database"
	"github.com/stashbox/stashbox-backend-go/internal/pkg/jwt"
	"github.com/stashbox/stashbox-backend-go/internal/pkg/oauth"
	"github.com/stashbox/stashbox-backend-go/internal/pkg/storage"
	"github.com/stashbox/stashbox-backend-go/internal/repository/postgresql"
	authService "github.com/stashbox/stashbox-backend-go/internal/service/auth"
	fileService "github.com/stashbox/stashbox-backend-go/internal/service/file"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Error loading config: ", err)
	}

	dsn := cfg.DatabaseURL()
	if err := database.Migrate(dsn); err != nil {
		log.Fatal("Error running migrations: ", err)
	}

	db, err := database.NewPostgreSQLDB(dsn)
	if err != nil {
		log.Fatal("Error connecting to database: ", err)
	}
	defer db.Close()

	userRepo := postgresql.NewUserRepository(db)
	jwtRepo := postgresql.NewJWTRepository(db)
	fileRepo := postgresql.NewFileRepository(db)

	jwtSvc := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration, cfg.JWT.RefreshExpiration)
	googleSvc := oauth.NewGoogleService(cfg.OAuth2Google.ClientID, cfg.OAuth2Google.ClientSecret, cfg.OAuth2Google.RedirectURL, cfg.OAuth2Google.Scopes)

	var provider storage.Provider
	switch cfg.Storage.Provider {
	case "s3":
		provider = storage.NewS3Storage(
			cfg.Storage.S3.Region,
			cfg.Storage.S3.AccessKeyID,
			cfg.Storage.S3.SecretAccessKey,
			cfg.Storage.S3.Endpoint,
			cfg.Storage.Bucket,
			cfg.Storage.SignedURLExpiry,
		)
	case "minio":
		provider, err = storage.NewMinioStorage(
			cfg.Storage.Minio.Endpoint,
			cfg.Storage.Minio.AccessKeyID,
			cfg.Storage.Minio.SecretAccessKey,
			cfg.Storage.Bucket,
			cfg.Storage.Minio.UseSSL,
			cfg.Storage.SignedURLExpiry,
		)
		if err != nil {
			log.Fatal("Failed to initialize minio storage: ", err)
		}
	default:
		log.Fatal("Unsupported storage provider: ", cfg.Storage.Provider)
	}

	authSvc := authService.NewAuthService(db, userRepo, jwtSvc, jwtRepo)
	fileSvc := fileService.NewFileService(fileRepo, provider, cfg.Storage)

	authHandler := appHTTP.NewAuthHandler(jwtSvc, authSvc, googleSvc, cfg.App.FrontendURL)
	fileHandler := appHTTP.NewFileHandler(fileSvc, cfg.Storage.MaxUploadSize)

	scheduler := cron.NewScheduler()
	scheduler.AddJob("refresh_token_cleanup", time.Hour, cron.RefreshTokenCleanup(jwtRepo))
	scheduler.Start()
	defer scheduler.Stop()

	router := appHTTP.NewRouter(cfg.App, jwtSvc, authHandler, fileHandler)

	port := fmt.Sprintf(":%d", cfg.App.Port)
	fmt.Printf("Server running at http://localhost%s\n", port)
	if err := http.ListenAndServe(port, router); err != nil {
		fmt.Println("Server error:", err)
	}
}
