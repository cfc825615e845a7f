package commands_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chaintodo/internal/commands"
	"chaintodo/internal/ledger"
)

func TestParseTaskRef(t *testing.T) {
	tests := map[string]struct {
		args   []string
		exp    commands.TaskRef
		expErr string
	}{
		"Display number": {
			args: []string{"3"},
			exp:  commands.TaskRef{Num: 3, Input: "3"},
		},
		"Leading zeros": {
			args: []string{"007"},
			exp:  commands.TaskRef{Num: 7, Input: "007"},
		},
		"Ledger id": {
			args: []string{"#42"},
			exp:  commands.TaskRef{ID: 42, ByID: true, Input: "#42"},
		},
		"Max ledger id": {
			args: []string{"#18446744073709551615"},
			exp:  commands.TaskRef{ID: 18446744073709551615, ByID: true, Input: "#18446744073709551615"},
		},
		"Ledger id overflow": {
			args:   []string{"#18446744073709551616"},
			expErr: "invalid task reference: #18446744073709551616",
		},
		"Hash only": {
			args:   []string{"#"},
			expErr: "invalid task reference: #",
		},
		"Negative": {
			args:   []string{"-1"},
			expErr: "invalid task reference: -1",
		},
		"Letters": {
			args:   []string{"a1"},
			expErr: "invalid task reference: a1",
		},
		"Non ASCII digits": {
			args:   []string{"١٢"},
			expErr: "invalid task reference: ١٢",
		},
		"Extra argument": {
			args:   []string{"1", "2"},
			expErr: "unexpected argument: 2",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			ref, err := commands.ParseTaskRef(tt.args)
			if tt.expErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.expErr, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.exp, ref)
		})
	}
}

func TestParseTaskRefRequired(t *testing.T) {
	_, err := commands.ParseTaskRef(nil)
	assert.True(t, errors.Is(err, commands.ErrTaskRefRequired))
}

func TestTaskRefResolve(t *testing.T) {
	tasks := []ledger.Task{
		{ID: 1, Description: "buy milk"},
		{ID: 5, Description: "walk dog"},
		{ID: 2, Description: "pay rent", Completed: true},
	}

	tests := map[string]struct {
		ref    commands.TaskRef
		expID  ledger.TaskID
		expErr string
	}{
		"First":        {ref: commands.TaskRef{Num: 1}, expID: 1},
		"Last":         {ref: commands.TaskRef{Num: 3}, expID: 2},
		"Zero":         {ref: commands.TaskRef{Num: 0}, expErr: "task number out of range: 0"},
		"Past the end": {ref: commands.TaskRef{Num: 4}, expErr: "task number out of range: 4"},
		"By id":        {ref: commands.TaskRef{ID: 5, ByID: true, Input: "#5"}, expID: 5},
		"Unknown id":   {ref: commands.TaskRef{ID: 3, ByID: true, Input: "#3"}, expErr: "task not found: #3"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			task, err := tt.ref.Resolve(tasks)
			if tt.expErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.expErr, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expID, task.ID)
		})
	}
}
