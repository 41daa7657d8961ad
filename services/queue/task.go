package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const TypeAuthCodeEmail = "email:auth_code"

// AuthCodePayload is the serialized body of an auth code email task.
type AuthCodePayload struct {
	Email string `json:"email"`
	Code  string `json:"code"`
	Name  string `json:"name,omitempty"`
}

func NewAuthCodeTask(email, code, name string) (*asynq.Task, error) {
	payload, err := json.Marshal(AuthCodePayload{Email: email, Code: code, Name: name})
	if err != nil {
		return nil, fmt.Errorf("json data marshal failed: %w", err)
	}
	return asynq.NewTask(TypeAuthCodeEmail, payload), nil
}
