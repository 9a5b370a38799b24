// Package engine ties routing, matching, captures and stores together.
//
// An Engine holds the published resource table. Each request becomes an
// Exchange: it is matched, request-phase captures are written, the static
// response is rendered, response-phase captures are queued, and the queue
// is flushed once the response has been written (or discarded when the
// client went away). Handler serves that flow over HTTP together with the
// /system endpoints, and Server runs the Handler on a listener.
//
// Basic usage:
//
//	bundle, _ := config.Load("./mocks")
//	e := engine.New(engine.WithLogger(log))
//	if err := e.Load(bundle.Resources); err != nil { ... }
//	_ = e.Preload(ctx, bundle.Stores)
//	srv := engine.NewServer(e, engine.WithAddr(":8080"))
//	_ = srv.Start(ctx)
//	defer srv.Stop(ctx)
package engine
