package response

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mcoot/turnclock/internal/model"
)

// JSON writes a JSON response. Responses are never cached since room state
// changes with every command.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// WriteRoom writes a room, tagging it with its version as an ETag
func WriteRoom(w http.ResponseWriter, status int, room *model.Room) {
	w.Header().Set("ETag", fmt.Sprintf(`"%d"`, room.Version))
	JSON(w, status, RoomFromModel(room))
}

// NoContent writes a 204 No Content response
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
