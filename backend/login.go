package backend

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func login(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	var data loginRequest
	if err := readJSON(req, &data); err != nil {
		return err
	}

	u, err := ctx.Login(data.Username, data.Password)
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusOK, newUserView(u))
	return nil
}
