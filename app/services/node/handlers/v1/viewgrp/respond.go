package viewgrp

import (
	"encoding/json"
	"net/http"

	"github.com/brendisurfs/gossipchain/business/web/errs"
)

func (h Handlers) respond(w http.ResponseWriter, data any, statusCode int) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		h.Log.Errorw("respond", "ERROR", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if _, err := w.Write(jsonData); err != nil {
		h.Log.Errorw("respond", "ERROR", err)
	}
}

func (h Handlers) respondError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	resp := errs.Response{Error: http.StatusText(statusCode)}

	if errs.IsTrusted(err) {
		trusted := errs.GetTrusted(err)
		statusCode = trusted.Status
		resp.Error = trusted.Err.Error()
	}

	h.Log.Errorw("respond", "statusCode", statusCode, "ERROR", err)
	h.respond(w, resp, statusCode)
}
