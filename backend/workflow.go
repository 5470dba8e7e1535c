package backend

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/srdaspradeep-gif/DMsDoc/core"
)

type workflowRequest struct {
	FileID         string               `json:"file_id"`
	Mode           string               `json:"mode"`
	ResolutionText string               `json:"resolution_text"`
	Approvers      []core.ApproverInput `json:"approvers"`
}

func createWorkflow(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	var data workflowRequest
	if err := readJSON(req, &data); err != nil {
		return err
	}

	workflow, err := ctx.db.CreateWorkflow(req.Context(), core.WorkflowRequest{
		FileID:         data.FileID,
		Mode:           core.Mode(data.Mode),
		ResolutionText: data.ResolutionText,
		Approvers:      data.Approvers,
	}, ctx.UserID)
	if err != nil {
		return err
	}

	var v = newWorkflowView(workflow)
	ctx.enrich(&v)
	writeJSON(w, http.StatusCreated, v)
	return nil
}

func workflow(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	workflow, err := ctx.db.GetWorkflow(req.Context(), params.ByName("id"))
	if err != nil {
		return err
	}

	var v = newWorkflowView(workflow)
	ctx.enrich(&v)
	writeJSON(w, http.StatusOK, v)
	return nil
}

func cancelWorkflow(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	workflow, err := ctx.db.CancelWorkflow(req.Context(), params.ByName("id"), ctx.UserID)
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusOK, newWorkflowView(workflow))
	return nil
}

func purgeWorkflow(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	if err := ctx.db.DeleteWorkflow(req.Context(), params.ByName("id"), ctx.UserID); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

type decisionRequest struct {
	Decision string `json:"decision"`
	Comment  string `json:"comment"`
}

func decide(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	var data decisionRequest
	if err := readJSON(req, &data); err != nil {
		return err
	}

	decision, err := core.ParseDecision(data.Decision)
	if err != nil {
		return err
	}

	step, err := ctx.db.Decide(req.Context(), params.ByName("id"), ctx.UserID, decision, data.Comment)
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusOK, newStepView(step))
	return nil
}
