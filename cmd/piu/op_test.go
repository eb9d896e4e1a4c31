package main

import (
	"errors"
	"testing"
)

func TestSaveAfter(t *testing.T) {
	errCmd := errors.New("upload failed")
	errSave := errors.New("session file locked")

	tests := []struct {
		name    string
		cmdErr  error
		saveErr error
		want    []error
	}{
		{"both succeed", nil, nil, nil},
		{"command fails", errCmd, nil, []error{errCmd}},
		{"save fails", nil, errSave, []error{errSave}},
		{"both fail", errCmd, errSave, []error{errCmd, errSave}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saved := false
			err := saveAfter(tt.cmdErr, func() error {
				saved = true
				return tt.saveErr
			})
			if !saved {
				t.Error("session not saved")
			}
			if len(tt.want) == 0 && err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			for _, w := range tt.want {
				if !errors.Is(err, w) {
					t.Errorf("error %v does not wrap %v", err, w)
				}
			}
		})
	}
}
