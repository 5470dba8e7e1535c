package backend

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/srdaspradeep-gif/DMsDoc/core"
)

type accessRequest struct {
	Permission string `json:"permission"`
}

// access sets the permission of a user on the approvals module.
func access(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	var data accessRequest
	if err := readJSON(req, &data); err != nil {
		return err
	}

	perm, err := core.ParsePermission(data.Permission)
	if err != nil {
		return err
	}

	if err := ctx.db.Grant(req.Context(), params.ByName("id"), core.ModuleApprovals, perm); err != nil {
		return err
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"user_id":    params.ByName("id"),
		"module":     core.ModuleApprovals,
		"permission": perm.String(),
	})
	return nil
}
