package main

import (
	"slices"
	"strings"
	"unicode/utf8"
)

const maxTaskTextLength = 1000

type validator struct {
	errors map[string]string
}

func newValidator() *validator {
	return &validator{
		errors: make(map[string]string),
	}
}

func (v *validator) hasErrors() bool {
	return len(v.errors) != 0
}

func (v *validator) checkCond(cond bool, key, msg string) {
	if cond {
		return
	}
	if _, ok := v.errors[key]; !ok {
		v.errors[key] = msg
	}
}

func (v *validator) checkUsername(username string) {
	v.checkCond(strings.TrimSpace(username) != "", "username", "must be provided")
	v.checkCond(utf8.RuneCountInString(username) <= 255, "username", "must be atmost 255 characters")
}

// bcrypt only looks at the first 72 bytes, so longer passwords are refused.
func (v *validator) checkPassword(password string) {
	v.checkCond(password != "", "password", "must be provided")
	v.checkCond(len(password) >= 8, "password", "must be atleast 8 characters long")
	v.checkCond(len(password) <= 72, "password", "must be atmost 72 bytes long")
}

func (v *validator) checkTaskText(text string) {
	v.checkCond(strings.TrimSpace(text) != "", "text", "must be provided")
	v.checkCond(len(text) <= maxTaskTextLength, "text", "must be atmost 1000 bytes long")
}

func (v *validator) checkStatus(status string) {
	v.checkCond(slices.Contains(taskStatuses, status), "status", "must be one of pending, in-progress, done")
}

func (v *validator) checkPriority(priority string) {
	v.checkCond(slices.Contains(taskPriorities, priority), "priority", "must be one of low, medium, high")
}
