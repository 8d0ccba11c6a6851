// Sidecar health prober: polls the chat server's probes and serves the
// last observed state over a lean fasthttp endpoint. Load balancers can
// hit this at high frequency without touching the main server.
package main

import (
	"flag"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
)

func main() {
	addr := flag.String("addr", ":8081", "listen address for the health sidecar")
	target := flag.String("target", "http://127.0.0.1:8080", "chat server base URL to probe")
	interval := flag.Duration("interval", 2*time.Second, "probe interval")
	ver := flag.String("version", "dev", "version string to return")
	flag.Parse()

	var healthy atomic.Bool
	probe := &fasthttp.Client{ReadTimeout: 3 * time.Second, WriteTimeout: 3 * time.Second}
	go func() {
		for {
			code, _, err := probe.GetTimeout(nil, *target+"/readyz", 3*time.Second)
			healthy.Store(err == nil && code == fasthttp.StatusOK)
			time.Sleep(*interval)
		}
	}()

	h := func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/health", "/healthz":
			ctx.Response.Header.Set("Content-Type", "application/json")
			if healthy.Load() {
				ctx.SetStatusCode(fasthttp.StatusOK)
				_, _ = ctx.WriteString(fmt.Sprintf("{\"status\":\"ok\",\"version\":\"%s\"}", *ver))
				return
			}
			ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
			_, _ = ctx.WriteString("{\"status\":\"unhealthy\"}")
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	}

	fmt.Printf("health sidecar listening on %s probing %s\n", *addr, *target)
	srv := &fasthttp.Server{
		Handler:            h,
		Name:               "tutorchat-health",
		ReadTimeout:        5 * time.Second,
		WriteTimeout:       5 * time.Second,
		MaxRequestBodySize: 1 << 20,
	}
	if err := srv.ListenAndServe(*addr); err != nil {
		fmt.Printf("fasthttp server exit: %v\n", err)
	}
}
