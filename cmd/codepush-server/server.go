/*
Copyright The CodePush Server Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"codepush.sh/codepush/pkg/action"
	"codepush.sh/codepush/pkg/api"
	"codepush.sh/codepush/pkg/blob"
	"codepush.sh/codepush/pkg/cache"
	"codepush.sh/codepush/pkg/cli"
	"codepush.sh/codepush/pkg/objstore"
	objmem "codepush.sh/codepush/pkg/objstore/memory"
	"codepush.sh/codepush/pkg/objstore/s3"
	"codepush.sh/codepush/pkg/storage"
	storagemem "codepush.sh/codepush/pkg/storage/memory"
	"codepush.sh/codepush/pkg/storage/postgres"
)

// shutdownGrace bounds how long in-flight requests may run after a
// termination signal.
const shutdownGrace = 15 * time.Second

func serve(ctx context.Context, settings *cli.EnvSettings, log *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := newStorage(settings, log)
	if err != nil {
		return err
	}
	objects, err := newObjectStore(ctx, settings, log)
	if err != nil {
		return err
	}
	blobs := blob.NewService(objects, newURLCache(settings, log))
	blobs.Log = log.Warnf

	server := api.NewServer(api.Config{
		Actions: &action.Configuration{
			Storage: store,
			Blobs:   blobs,
			Log:     log.Infof,
		},
		AllowedOrigins:            settings.AllowedOrigins,
		EnableAccountRegistration: settings.EnableAccountRegistration,
		Log:                       log.Infof,
	})

	httpServer := &http.Server{
		Addr:    settings.Addr,
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("serving", "addr", settings.Addr, "storage", store.Name())
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newStorage(settings *cli.EnvSettings, log *zap.SugaredLogger) (storage.Storage, error) {
	if settings.DatabaseURL == "" {
		log.Warn("no database configured, state is held in memory and lost on restart")
		return storagemem.NewMemory(), nil
	}
	return postgres.New(settings.DatabaseURL, log.Debugf)
}

func newObjectStore(ctx context.Context, settings *cli.EnvSettings, log *zap.SugaredLogger) (objstore.ObjectStore, error) {
	if settings.S3Bucket == "" {
		log.Warn("no bucket configured, bundles are held in memory and lost on restart")
		return objmem.New(), nil
	}
	return s3.New(ctx, s3.Config{
		Bucket:       settings.S3Bucket,
		Region:       settings.S3Region,
		EndpointURL:  settings.S3Endpoint,
		AccessKeyID:  settings.S3AccessKey,
		SecretKey:    settings.S3SecretKey,
		UsePathStyle: settings.S3Endpoint != "",
	})
}

func newURLCache(settings *cli.EnvSettings, log *zap.SugaredLogger) cache.Cache {
	if settings.RedisAddr == "" {
		return cache.NewInMemory()
	}
	log.Infow("using redis url cache", "addr", settings.RedisAddr)
	return cache.NewRedis(cache.Options{
		Address:  settings.RedisAddr,
		Password: settings.RedisPassword,
	})
}
