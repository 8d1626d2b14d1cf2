package main

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

type passwordHasher struct {
	cost int
	// dummy is compared against when a login names an unknown user so that
	// both failure paths cost one bcrypt comparison.
	dummy []byte
}

func newPasswordHasher(cost int) (*passwordHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	if err != nil {
		return nil, err
	}
	return &passwordHasher{cost: cost, dummy: dummy}, nil
}

func (h *passwordHasher) hash(plaintext string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
}

func (h *passwordHasher) matches(plaintext string, hash []byte) (bool, error) {
	err := bcrypt.CompareHashAndPassword(hash, []byte(plaintext))
	if err != nil {
		switch {
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, err
		}
	}
	return true, nil
}

// burn spends the same work as a real comparison and discards the result.
func (h *passwordHasher) burn(plaintext string) {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(plaintext))
}
