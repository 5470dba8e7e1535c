package backend

import (
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
)

type folderRequest struct {
	ParentID string `json:"parent_id"`
	Name     string `json:"name"`
}

type folderView struct {
	ID        string    `json:"id"`
	ParentID  string    `json:"parent_id,omitempty"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func createFolder(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	var data folderRequest
	if err := readJSON(req, &data); err != nil {
		return err
	}

	folder, err := ctx.db.CreateFolder(req.Context(), data.ParentID, data.Name, ctx.UserID)
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusCreated, folderView{
		ID:        folder.ID,
		ParentID:  folder.ParentID,
		Name:      folder.Name,
		CreatedAt: folder.CreatedAt,
	})
	return nil
}

type fileRequest struct {
	FolderID string `json:"folder_id"`
	Name     string `json:"name"`
}

type fileView struct {
	ID        string        `json:"id"`
	FolderID  string        `json:"folder_id"`
	Name      string        `json:"name"`
	CreatedAt time.Time     `json:"created_at"`
	Workflow  *workflowView `json:"approval_workflow"`
}

// createFile registers a new file. If a folder rule applies, the response contains the created workflow.
func createFile(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	var data fileRequest
	if err := readJSON(req, &data); err != nil {
		return err
	}

	file, workflow, err := ctx.db.CreateFile(req.Context(), data.FolderID, data.Name, ctx.UserID)
	if err != nil {
		return err
	}

	var v = fileView{
		ID:        file.ID,
		FolderID:  file.FolderID,
		Name:      file.Name,
		CreatedAt: file.CreatedAt,
	}
	if workflow != nil {
		var wv = newWorkflowView(workflow)
		ctx.enrich(&wv)
		v.Workflow = &wv
	}
	writeJSON(w, http.StatusCreated, v)
	return nil
}
