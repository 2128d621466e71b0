package handlers

import (
	"net/http"

	"blogposts/export"
)

type ExportTaskResponse struct {
	TaskId string `json:"taskId"`
}

func (h *HTTPHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	if !authorized(w, r) {
		return
	}
	if h.Broker != nil {
		taskId, err := h.Broker.SendExport(r.Context())
		if err != nil {
			handleError(w, r, err, "queueing export")
			return
		}
		writeJSON(w, r, http.StatusAccepted, ExportTaskResponse{TaskId: taskId})
		return
	}

	ctx, cancel := h.storeContext(r)
	defer cancel()
	res, err := export.Run(ctx, h.Service, h.Sink)
	if err != nil {
		handleError(w, r, err, "exporting posts")
		return
	}
	writeJSON(w, r, http.StatusCreated, res)
}

func (h *HTTPHandler) HandleGetLatestExport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.storeContext(r)
	defer cancel()
	data, err := h.Sink.Latest(ctx)
	if err != nil {
		handleError(w, r, err, "reading latest export")
		return
	}
	if data == nil {
		http.Error(w, "No export yet.", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
