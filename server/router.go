package server

import (
	"net/http"

	"shipjoy/server/domain"
	"shipjoy/server/handler"
)

func Route(pubsub domain.PubSub, roomManager domain.RoomManager, status handler.StatusReporter, opts ...domain.EndpointOption) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/ws", handler.NewAcceptHandler(pubsub, roomManager, opts...))
	mux.Handle("GET /healthz", handler.NewHealthHandler(status))
	return mux
}
