package server

import (
	"encoding/json"
	"log/slog"

	"buspass/internal/middleware"
	"buspass/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// ReviewFeedHandler streams review events (submissions and decisions) to a
// connected operator. Authentication happens before the upgrade through a
// ticket from IssueWSTicket.
func (s *Server) ReviewFeedHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		operatorID, ok := conn.Locals(middleware.LocalOperatorID).(uint)
		if !ok || operatorID == 0 {
			observability.GlobalLogger.Warn("review feed connection without operator")
			refuse(conn, "unauthorized")
			return
		}

		if s.reviewHub == nil {
			refuse(conn, "review feed unavailable")
			return
		}

		client, err := s.reviewHub.Register(operatorID, conn)
		if err != nil {
			observability.GlobalLogger.Warn("review feed refused",
				slog.Uint64("operator_id", uint64(operatorID)), slog.String("error", err.Error()))
			refuse(conn, err.Error())
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}

// refuse sends one error message and closes the connection.
func refuse(conn *websocket.Conn, reason string) {
	msg, _ := json.Marshal(map[string]string{"error": reason})
	_ = conn.WriteMessage(websocket.TextMessage, msg)
	_ = conn.Close()
}
