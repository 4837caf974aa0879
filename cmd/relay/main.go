// The relay server: OTP login, prekey bundle distribution, and WebSocket
// message forwarding. It stores ciphertext and key material only; plaintext
// never reaches it.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"sealchat/internal/server/auth"
	"sealchat/internal/server/httpapi"
	"sealchat/internal/server/keys"
	"sealchat/internal/server/storage"
	"sealchat/internal/server/ws"
)

func main() {
	v := viper.New()
	v.SetEnvPrefix("SEALCHAT")
	v.AutomaticEnv()
	v.SetDefault("addr", ":8080")
	v.SetDefault("db", "sealchat.db")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_ttl", 30*24*time.Hour)
	v.SetDefault("otp_ttl", 5*time.Minute)

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	secret := v.GetString("jwt_secret")
	if secret == "" {
		log.Fatal().Msg("SEALCHAT_JWT_SECRET is required")
	}

	store, err := storage.Open(v.GetString("db"))
	if err != nil {
		log.Fatal().Err(err).Msg("opening database")
	}
	defer store.Close()

	issuer := auth.NewIssuer([]byte(secret), v.GetDuration("jwt_ttl"))
	otp := auth.NewOTP(store, issuer, auth.LogGateway{Log: log}, v.GetDuration("otp_ttl"), log)
	keySvc := keys.NewService(store, log)
	registry := ws.NewRegistry(log)
	wsHandler := ws.NewHandler(registry, store, issuer, log)
	api := httpapi.NewAPI(store, keySvc, otp, log)

	srv := &http.Server{
		Addr:              v.GetString("addr"),
		Handler:           api.Router(issuer, wsHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("relay listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}
