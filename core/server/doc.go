// Package server runs an http.Handler with production timeouts and graceful
// shutdown, and plugs into errgroup through Run.
//
//	srv, err := server.NewFromConfig(cfg.Server, server.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	g.Go(srv.Run(ctx, mux))
//
// The server listens before serving, so Addr reports the bound address even
// when configured with port 0.
package server
