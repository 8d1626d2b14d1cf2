package main

import (
	"time"

	"github.com/google/uuid"
)

type user struct {
	ID           uuid.UUID `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Username     string    `json:"username"`
	PasswordHash []byte    `json:"-"`
}

type task struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UserID    uuid.UUID `json:"user_id"`
	Text      string    `json:"text"`
	Status    string    `json:"status"`
	Priority  string    `json:"priority"`
}

const (
	statusPending    = "pending"
	statusInProgress = "in-progress"
	statusDone       = "done"

	priorityLow    = "low"
	priorityMedium = "medium"
	priorityHigh   = "high"
)

var (
	taskStatuses   = []string{statusPending, statusInProgress, statusDone}
	taskPriorities = []string{priorityLow, priorityMedium, priorityHigh}
)
