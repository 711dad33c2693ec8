/*
 * Copyright 2017-2022 Provide Technologies Inc.
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

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/provideplatform/bridge/channel"
	"github.com/provideplatform/bridge/common"
)

const defaultListenAddr = "0.0.0.0:8080"
const runloopSleepInterval = 250 * time.Millisecond
const runloopTickInterval = 5000 * time.Millisecond
const shutdownTimeout = 10 * time.Second

var (
	cancelF     context.CancelFunc
	closing     uint32
	shutdownCtx context.Context
	sigs        chan os.Signal

	srv *http.Server
)

func main() {
	common.Log.Debug("starting bridge API...")
	installSignalHandlers()

	serveAPI()

	timer := time.NewTicker(runloopTickInterval)
	defer timer.Stop()

	for !shuttingDown() {
		select {
		case <-timer.C:
			// tick... no-op
		case sig := <-sigs:
			common.Log.Debugf("received signal: %s", sig)
			shutdown()
		case <-shutdownCtx.Done():
			close(sigs)
		default:
			time.Sleep(runloopSleepInterval)
		}
	}

	common.Log.Debug("exiting bridge API")
	cancelF()
}

func installSignalHandlers() {
	common.Log.Debug("installing signal handlers for bridge API")
	sigs = make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	shutdownCtx, cancelF = context.WithCancel(context.Background())
}

func serveAPI() {
	r := gin.New()
	r.Use(gin.Recovery())

	channel.InstallAPI(r)

	r.GET("/status", statusHandler)

	listenAddr := os.Getenv("LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = defaultListenAddr
	}

	srv = &http.Server{
		Addr:    listenAddr,
		Handler: r,
	}

	go func() {
		common.Log.Infof("bridge API listening on %s", listenAddr)
		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			common.Log.Panicf("failed to serve bridge API; %s", err.Error())
		}
	}()
}

func statusHandler(c *gin.Context) {
	c.JSON(200, map[string]interface{}{
		"status": "ok",
	})
}

func shutdown() {
	if atomic.AddUint32(&closing, 1) == 1 {
		common.Log.Debug("shutting down bridge API")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(ctx)
		if err != nil {
			common.Log.Warningf("failed to gracefully shut down bridge API; %s", err.Error())
		}

		cancelF()
	}
}

func shuttingDown() bool {
	return atomic.LoadUint32(&closing) > 0
}
