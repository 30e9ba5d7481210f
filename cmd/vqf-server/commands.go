package main

// commands creates a new router and registers all the server's command
// handlers. This is the single source of truth for what commands the
// server supports.
func (app *application) commands() *Router {
	router := NewRouter()

	router.Handle("PING", app.handlePing)
	router.Handle("QUIT", app.handleQuit)

	router.Handle("VQF.INSERT", app.handleInsert)
	router.Handle("VQF.INSERTVAL", app.handleInsertVal)
	router.Handle("VQF.REMOVE", app.handleRemove)
	router.Handle("VQF.EXISTS", app.handleExists)
	router.Handle("VQF.QUERY", app.handleQuery)
	router.Handle("VQF.QUERYALL", app.handleQueryAll)
	router.Handle("VQF.STATS", app.handleStats)

	return router
}
