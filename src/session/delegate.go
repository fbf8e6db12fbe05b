package session

import (
	"context"
	"log"

	"llm-assistant/src/operation"
	"llm-assistant/src/singleinstance"
)

// ServeDelegated accepts operation requests from other processes until ctx
// ends or the server closes. Each request is triggered inside the loop.
func (c *Controller) ServeDelegated(ctx context.Context, srv singleinstance.Server) {
	for {
		conn, err := srv.Next(ctx)
		if err != nil {
			log.Printf("Session: delegation server stopped: %v", err)
			return
		}
		req := conn.Request()
		op, err := operation.Parse(req.Operation)
		if err != nil {
			log.Printf("Session: delegated request rejected: %v", err)
			_ = conn.RespondError(err.Error())
			_ = conn.Close()
			continue
		}
		target := DelegatedTarget{
			Conn:           conn,
			OutputToStdout: req.OutputToStdout,
			Window:         WindowTarget{Surface: c.surface, Title: op.Definition.Title},
		}
		if !c.loop.Post(func() { _ = c.Trigger(op.ID, target) }) {
			_ = conn.RespondError("resident is shutting down")
			_ = conn.Close()
		}
	}
}
