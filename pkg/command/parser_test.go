package command

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/entrhq/vouch/pkg/types"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want types.Command
	}{
		{
			name: "bare text defaults to auto",
			raw:  "what is on this page",
			want: types.Command{Mode: types.ModeAuto, Instruction: "what is on this page"},
		},
		{
			name: "full mode prefix",
			raw:  "extract: list all product names",
			want: types.Command{Mode: types.ModeExtract, Instruction: "list all product names"},
		},
		{
			name: "short alias",
			raw:  "a: click the login button",
			want: types.Command{Mode: types.ModeAct, Instruction: "click the login button"},
		},
		{
			name: "instance target",
			raw:  "@admin t: archive the first ticket",
			want: types.Command{
				Mode:           types.ModeTask,
				Instruction:    "archive the first ticket",
				TargetInstance: "admin",
			},
		},
		{
			name: "instance and tab index target",
			raw:  "@admin:0 e: get title",
			want: types.Command{
				Mode:           types.ModeExtract,
				Instruction:    "get title",
				TargetInstance: "admin",
				TargetTab:      "0",
			},
		},
		{
			name: "instance and url fragment target",
			raw:  "@shop:checkout a: press place order",
			want: types.Command{
				Mode:           types.ModeAct,
				Instruction:    "press place order",
				TargetInstance: "shop",
				TargetTab:      "checkout",
			},
		},
		{
			name: "unknown prefix stays in the instruction",
			raw:  "note: the cart page is slow",
			want: types.Command{Mode: types.ModeAuto, Instruction: "note: the cart page is slow"},
		},
		{
			name: "goto",
			raw:  "g: https://example.com/login",
			want: types.Command{Mode: types.ModeGoto, Instruction: "https://example.com/login"},
		},
		{
			name: "mode prefix is case-insensitive",
			raw:  "Extract: headings",
			want: types.Command{Mode: types.ModeExtract, Instruction: "headings"},
		},
		{
			name: "target with no instruction",
			raw:  "@admin",
			want: types.Command{Mode: types.ModeAuto, TargetInstance: "admin"},
		},
		{
			name: "whitespace only",
			raw:  "   ",
			want: types.Command{Mode: types.ModeAuto},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.raw)
			tt.want.Raw = tt.raw
			assert.Equal(t, tt.want, got)
		})
	}
}
