package backend

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/srdaspradeep-gif/DMsDoc/core"
)

type ruleRequest struct {
	FolderID          string               `json:"folder_id"`
	Mode              *core.Mode           `json:"mode"`
	ResolutionText    *string              `json:"resolution_text"`
	ApplyToSubfolders *bool                `json:"apply_to_subfolders"`
	IsActive          *bool                `json:"is_active"`
	Approvers         []core.ApproverInput `json:"approvers"`
}

func (r ruleRequest) toCore() core.RuleRequest {
	return core.RuleRequest{
		FolderID:          r.FolderID,
		Mode:              r.Mode,
		ResolutionText:    r.ResolutionText,
		ApplyToSubfolders: r.ApplyToSubfolders,
		IsActive:          r.IsActive,
		Approvers:         r.Approvers,
	}
}

func rules(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	limit, offset, err := page(req)
	if err != nil {
		return err
	}

	isActive, err := boolParam(req, "is_active")
	if err != nil {
		return err
	}

	all, err := ctx.db.ListRules(req.Context(), core.RuleFilter{
		FolderID: req.URL.Query().Get("folder_id"),
		IsActive: isActive,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return err
	}

	var views = []ruleView{}
	for _, r := range all {
		views = append(views, newRuleView(r))
	}
	writeJSON(w, http.StatusOK, views)
	return nil
}

func rule(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	r, err := ctx.db.GetRule(req.Context(), params.ByName("id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newRuleView(r))
	return nil
}

func createRule(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	var data ruleRequest
	if err := readJSON(req, &data); err != nil {
		return err
	}

	r, err := ctx.db.CreateRule(req.Context(), data.toCore(), ctx.UserID)
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusCreated, newRuleView(r))
	return nil
}

func updateRule(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	var data ruleRequest
	if err := readJSON(req, &data); err != nil {
		return err
	}

	r, err := ctx.db.UpdateRule(req.Context(), params.ByName("id"), data.toCore())
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusOK, newRuleView(r))
	return nil
}

func deleteRule(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	if err := ctx.db.DeleteRule(req.Context(), params.ByName("id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// applicableRule returns the rule which would apply to a new file in the folder, or null.
func applicableRule(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	var folderID = params.ByName("id")
	if _, err := ctx.db.GetFolder(req.Context(), folderID); err != nil {
		return err
	}

	r, err := ctx.db.ApplicableRule(req.Context(), folderID)
	if err != nil {
		return err
	}

	if r == nil {
		writeJSON(w, http.StatusOK, nil)
		return nil
	}
	writeJSON(w, http.StatusOK, newRuleView(r))
	return nil
}
