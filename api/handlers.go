package main

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

func (app *application) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	healthCheck := envelope{
		"status":      "available",
		"environment": app.config.env,
		"version":     version,
		"uptime":      time.Since(app.startedAt).Round(time.Second).String(),
	}
	if err := app.storage.ping(r.Context()); err != nil {
		app.logError(r, err)
		app.unavailableResponse(w, r, "database")
		return
	}
	err := writeJSON(w, http.StatusOK, healthCheck, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

type credentialsInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (app *application) registerUserHandler(w http.ResponseWriter, r *http.Request) {
	var input credentialsInput
	err := readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	input.Username = strings.TrimSpace(input.Username)
	v := newValidator()
	v.checkUsername(input.Username)
	v.checkPassword(input.Password)
	if v.hasErrors() {
		app.failedValidationResponse(w, r, v.errors)
		return
	}

	hash, err := app.passwords.hash(input.Password)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}
	u := &user{
		Username:     input.Username,
		PasswordHash: hash,
	}
	err = app.storage.insertUser(r.Context(), u)
	if err != nil {
		switch {
		case errors.Is(err, errDuplicateUsername):
			app.duplicateUsernameResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}
	app.logger.Info("user registered", "user_id", u.ID)
	app.notifyRegistration(u)

	err = writeJSON(w, http.StatusOK, envelope{"message": "User registered successfully"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// loginHandler answers every credential mismatch the same way, whether the
// username is unknown or the password is wrong.
func (app *application) loginHandler(w http.ResponseWriter, r *http.Request) {
	var input credentialsInput
	err := readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	input.Username = strings.TrimSpace(input.Username)
	if input.Username == "" || input.Password == "" {
		app.invalidCredentialsResponse(w, r)
		return
	}

	u, err := app.storage.getUserByUsername(r.Context(), input.Username)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}
	if u == nil {
		app.passwords.burn(input.Password)
		app.invalidCredentialsResponse(w, r)
		return
	}
	match, err := app.passwords.matches(input.Password, u.PasswordHash)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}
	if !match {
		app.invalidCredentialsResponse(w, r)
		return
	}

	token, err := app.tokens.issue(u.ID)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}
	err = writeJSON(w, http.StatusOK, envelope{"token": token}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) createTaskHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Text     string `json:"text"`
		Status   string `json:"status"`
		Priority string `json:"priority"`
	}
	err := readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if input.Status == "" {
		input.Status = statusPending
	}
	if input.Priority == "" {
		input.Priority = priorityMedium
	}
	v := newValidator()
	v.checkTaskText(input.Text)
	v.checkStatus(input.Status)
	v.checkPriority(input.Priority)
	if v.hasErrors() {
		app.failedValidationResponse(w, r, v.errors)
		return
	}

	t := &task{
		UserID:   contextGetUserID(r),
		Text:     input.Text,
		Status:   input.Status,
		Priority: input.Priority,
	}
	err = app.storage.insertTask(r.Context(), t)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}
	err = writeJSON(w, http.StatusCreated, envelope{"message": "Task created successfully", "task": t}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) listTasksHandler(w http.ResponseWriter, r *http.Request) {
	tasks, err := app.storage.getTasksForUser(r.Context(), contextGetUserID(r))
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}
	err = writeJSON(w, http.StatusOK, tasks, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) updateTaskStatusHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Status string `json:"status"`
	}
	err := readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	v := newValidator()
	v.checkStatus(input.Status)
	if v.hasErrors() {
		app.failedValidationResponse(w, r, v.errors)
		return
	}

	id, ok := readIDParam(r)
	if !ok {
		app.notFoundResponse(w, r)
		return
	}
	t, err := app.storage.updateTaskStatus(r.Context(), id, contextGetUserID(r), input.Status)
	if err != nil {
		switch {
		case errors.Is(err, errRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}
	err = writeJSON(w, http.StatusOK, envelope{"message": "Task updated successfully", "task": t}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) updateTaskPriorityHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Priority string `json:"priority"`
	}
	err := readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	v := newValidator()
	v.checkPriority(input.Priority)
	if v.hasErrors() {
		app.failedValidationResponse(w, r, v.errors)
		return
	}

	id, ok := readIDParam(r)
	if !ok {
		app.notFoundResponse(w, r)
		return
	}
	t, err := app.storage.updateTaskPriority(r.Context(), id, contextGetUserID(r), input.Priority)
	if err != nil {
		switch {
		case errors.Is(err, errRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}
	err = writeJSON(w, http.StatusOK, t, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// deleteTaskHandler reports success whether or not a task was removed, so
// repeated deletes look the same to the client.
func (app *application) deleteTaskHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := readIDParam(r)
	if ok {
		deleted, err := app.storage.deleteTask(r.Context(), id, contextGetUserID(r))
		if err != nil {
			app.serverErrorResponse(w, r, err)
			return
		}
		if deleted {
			app.logger.Debug("task deleted", "task_id", id)
		}
	}
	err := writeJSON(w, http.StatusOK, envelope{"message": "Task deleted successfully"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
