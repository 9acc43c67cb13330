package service

import (
	"fmt"
	"strings"
)

// Status is the review state of an ecology record.
type Status string

const (
	StatusChecked    Status = "checked"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusInProgress Status = "inProgress"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusChecked, StatusApproved, StatusRejected, StatusInProgress}

// uzbekStatus maps internal names to the values stored and sent upstream.
var uzbekStatus = map[Status]string{
	StatusApproved:   "tasdiqlangan",
	StatusRejected:   "tasdiqlanmagan",
	StatusChecked:    "tekshirilgan",
	StatusInProgress: "jarayonda",
}

// Uzbek returns the stored form of s.
func (s Status) Uzbek() string { return uzbekStatus[s] }

// ParseStatus accepts either the Uzbek value or the internal name.
func ParseStatus(v string) (Status, error) {
	lv := strings.ToLower(strings.TrimSpace(v))
	for st, uz := range uzbekStatus {
		if lv == uz || lv == strings.ToLower(string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidValue, v)
}
