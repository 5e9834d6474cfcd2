package progress

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// WSWriter sends one JSON text frame per event and ends the stream with a
// normal close frame.
type WSWriter struct {
	conn *websocket.Conn
}

func NewWSWriter(conn *websocket.Conn) *WSWriter {
	return &WSWriter{conn: conn}
}

func (w *WSWriter) Write(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *WSWriter) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	return w.conn.Close()
}
