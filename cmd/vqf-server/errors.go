package main

import (
	"fmt"
	"io"
)

// unknownCommandResponse sends an unknown command error to the client.
func (app *application) unknownCommandResponse(w io.Writer, commandName string) {
	msg := fmt.Sprintf("ERR unknown command '%s'", commandName)
	_ = app.writeErrorResponse(w, msg)
}

// wrongNumberOfArgsResponse sends a wrong number of arguments error to the client.
func (app *application) wrongNumberOfArgsResponse(w io.Writer, commandName string) {
	msg := fmt.Sprintf("ERR wrong number of arguments for '%s' command", commandName)
	_ = app.writeErrorResponse(w, msg)
}

// badValueResponse sends a malformed-argument error to the client.
func (app *application) badValueResponse(w io.Writer, commandName string) {
	msg := fmt.Sprintf("ERR value is not an integer in range 0-255 for '%s' command", commandName)
	_ = app.writeErrorResponse(w, msg)
}
