package handler

import (
	"net/http"
	"time"

	"crosswatch/internal/logger"
	"crosswatch/internal/service"

	"github.com/gorilla/websocket"
)

const streamWriteWait = 5 * time.Second

// RecognitionWebsocketHandler runs the violation pipeline over frames sent by
// a camera client. Every decodable frame is answered with one result message;
// undecodable ones are dropped.
func RecognitionWebsocketHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		defer connection.Close()

		session := manager.NewSession()
		defer manager.CloseSession(session)

		for {
			_, message, err := connection.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Warning("Stream %s read error: %v", session.ID(), err)
				}
				return
			}

			result, ok := session.HandleMessage(r.Context(), message)
			if !ok {
				continue
			}

			connection.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := connection.WriteJSON(result); err != nil {
				logger.Warning("Stream %s write error: %v", session.ID(), err)
				return
			}
		}
	}
}
