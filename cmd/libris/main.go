// Command libris serves the library catalog GraphQL API: queries and
// mutations over books, authors and users, and a bookAdded subscription
// stream over websockets.
package main

import (
	"context"
	goflag "flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"

	"github.com/andrewwphillips/libris/internal/auth"
	"github.com/andrewwphillips/libris/internal/config"
	"github.com/andrewwphillips/libris/internal/graph"
	"github.com/andrewwphillips/libris/internal/pubsub"
	"github.com/andrewwphillips/libris/internal/store"
)

const (
	path            = "/graphql"
	eventBuffer     = 64 // per-subscriber buffered events before drops
	shutdownTimeout = 10 * time.Second
)

func main() {
	_ = goflag.CommandLine.Parse(nil) // glog warns about logging before flag.Parse otherwise

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		glog.Exitf("loading configuration: %v", err)
	}

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		glog.Exitf("opening document store: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			glog.Errorf("closing document store: %v", err)
		}
	}()

	resolver := graph.New(st, auth.New(cfg.JWTSecret), pubsub.New[graph.Book](eventBuffer))
	handler, err := resolver.Handler()
	if err != nil {
		glog.Exitf("building GraphQL handler: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle(path, handler)
	server := &http.Server{Addr: cfg.Addr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		glog.Infof("serving GraphQL on %s%s", cfg.Addr, path)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Errorf("server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	glog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("shutdown: %v", err)
	}
	glog.Flush()
}
