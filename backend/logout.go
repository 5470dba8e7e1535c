package backend

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

func logout(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	if err := ctx.Logout(); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
