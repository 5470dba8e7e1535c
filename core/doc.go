// Package core contains the approval workflow engine of DMsDoc.
//
// A Workflow and its Steps form one aggregate whose status is always derived from the step statuses.
// CoreDB wires the engine to storage, folder rules and user notifications.
package core
