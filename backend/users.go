package backend

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// users lists the accounts which can be assigned as approvers.
func users(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	limit, offset, err := page(req)
	if err != nil {
		return err
	}
	if limit <= 0 {
		limit = 100
	}

	all, err := ctx.db.GetAllUsers(req.Context(), limit, offset)
	if err != nil {
		return err
	}

	var views = []userView{}
	for _, u := range all {
		views = append(views, newUserView(u))
	}
	writeJSON(w, http.StatusOK, views)
	return nil
}
