// This file is part of duskchain.
//
// duskchain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// duskchain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with duskchain. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"io"
	"net/http"
	"os"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vrecan/death/v3"
	"go.uber.org/zap"
)

// prometheusDefaultRegisterer is the registry every node and short-lived
// CLI command exports counters to. network.NewMetrics accepts any
// Registerer, so other callers can pass a fresh registry instead.
func prometheusDefaultRegisterer() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}

// waitForShutdown blocks until SIGINT or SIGTERM, then closes every given
// resource before returning.
func waitForShutdown(closers ...io.Closer) {
	d := death.NewDeath(syscall.SIGINT, syscall.SIGTERM)
	d.WaitForDeath(closers...)
}

func newLogger() *zap.Logger {
	log, err := zap.NewProduction()
	if err != nil {
		log = zap.NewNop()
	}
	return log
}

func main() {
	// A missing .env is normal outside local development; NODE_ID and any
	// overrides may already be set directly in the environment.
	_ = godotenv.Load()

	log := newLogger()
	defer func() { _ = log.Sync() }()

	if addr := os.Getenv("METRICS_ADDR"); addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	cli := &CLI{log: log}
	if err := cli.Run(); err != nil {
		log.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}
