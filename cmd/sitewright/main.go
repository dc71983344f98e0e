/*
 * Copyright 2024 The Sitewright Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package main is the main package for the Sitewright application
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sitewright/sitewright/internal/config"
	"github.com/sitewright/sitewright/internal/interpreter"
	"github.com/sitewright/sitewright/internal/routing/watcher"
	"github.com/sitewright/sitewright/internal/server"
	"github.com/sitewright/sitewright/internal/session"
	"github.com/sitewright/sitewright/internal/session/store/registration"
	"github.com/sitewright/sitewright/internal/site"
	"github.com/sitewright/sitewright/internal/util/log"
	"github.com/sitewright/sitewright/internal/util/metrics"
)

const (
	applicationName    = "sitewright"
	applicationVersion = "0.9.0"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(1, "startup failed", log.Pairs{"detail": err.Error()})
	}
}

func run(args []string) error {

	if err := config.Load(applicationName, applicationVersion, args); err != nil {
		return err
	}
	if config.Flags.PrintVersion {
		fmt.Println(applicationVersion)
		return nil
	}

	log.Init()
	for _, w := range config.LoaderWarnings {
		log.Warn("configuration", log.Pairs{"detail": w})
	}
	metrics.Init()

	if err := registration.LoadStoresFromConfig(); err != nil {
		return err
	}
	defer registration.CloseStores()

	st, err := registration.GetStore(config.Sessions.StoreName)
	if err != nil {
		return err
	}

	mgr := session.NewManager(config.Sessions, st)
	if err := mgr.Rehydrate(); err != nil {
		log.Error("session rehydration failed", log.Pairs{"detail": err.Error()})
	}

	resolver, err := site.NewResolver(config.Sites)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchers := make([]*watcher.Watcher, 0, len(resolver.Sites()))
	for _, s := range resolver.Sites() {
		if len(s.RuleFiles) == 0 {
			continue
		}
		w := watcher.New(s.ID, s.RuleFiles, s)
		w.Load()
		watchers = append(watchers, w)
		go func(w *watcher.Watcher) {
			if err := w.Watch(ctx); err != nil && err != context.Canceled {
				log.Error("route watch terminated", log.Pairs{"detail": err.Error()})
			}
		}(w)
	}

	// session eviction heartbeat
	go func() {
		interval := time.Duration(config.Sessions.SweepIntervalMS) * time.Millisecond
		if interval <= 0 {
			interval = time.Minute
		}
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				mgr.Sweep()
			}
		}
	}()

	srv := server.New(resolver, mgr, interpreter.OptionsFromConfig(config.Frontend), nil)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for s := range sig {
			if s == syscall.SIGHUP {
				log.Info("sighup received, reloading route rules", log.Pairs{})
				for _, w := range watchers {
					w.Load()
				}
				continue
			}
			log.Info("shutting down", log.Pairs{"signal": s.String()})
			shutdownCtx, c := context.WithTimeout(context.Background(), 10*time.Second)
			srv.Shutdown(shutdownCtx)
			c()
			cancel()
			return
		}
	}()

	return srv.ListenAndServe()
}
