package backend

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/srdaspradeep-gif/DMsDoc/core"
)

func workflows(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	limit, offset, err := page(req)
	if err != nil {
		return err
	}

	all, err := ctx.db.ListWorkflows(req.Context(), core.WorkflowFilter{
		FileID: req.URL.Query().Get("file_id"),
		Status: core.WorkflowStatus(req.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return err
	}

	var views = []workflowView{}
	for _, workflow := range all {
		views = append(views, newWorkflowView(workflow))
	}
	writeJSON(w, http.StatusOK, views)
	return nil
}

type pendingView struct {
	Step     stepView     `json:"step"`
	Workflow workflowView `json:"workflow"`
}

func myApprovals(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	limit, offset, err := page(req)
	if err != nil {
		return err
	}

	pending, err := ctx.db.ListMyPending(req.Context(), ctx.UserID, limit, offset)
	if err != nil {
		return err
	}

	var views = []pendingView{}
	for _, p := range pending {
		var v = pendingView{
			Step:     newStepView(p.Step),
			Workflow: newWorkflowView(p.Workflow),
		}
		ctx.enrich(&v.Workflow)
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, views)
	return nil
}
