// Package command parses raw instruction text into a dispatchable
// types.Command: targeting prefix, mode prefix, and instruction body.
//
// Targeting syntax:
//
//	@name          route to instance "name"
//	@name:2        route to "name" and switch to tab index 2
//	@name:billing  route to "name" and switch to the first tab whose URL
//	               contains "billing" (case-insensitive)
//
// Mode syntax is a leading "mode:" prefix, either the full mode name or a
// single-letter alias (e: a: t: o: s: g: l: c:). Text without a recognized
// prefix dispatches as auto, which performs intent detection.
package command

import (
	"strings"

	"github.com/entrhq/vouch/pkg/types"
)

// modePrefixes maps recognized prefixes to dispatch modes. Single-letter
// aliases mirror the full names; unknown prefixes are left in the
// instruction text rather than rejected, since "note:" in a sentence is
// not a mode.
var modePrefixes = map[string]types.Mode{
	"extract": types.ModeExtract, "e": types.ModeExtract,
	"act": types.ModeAct, "a": types.ModeAct,
	"task": types.ModeTask, "t": types.ModeTask,
	"observe": types.ModeObserve, "o": types.ModeObserve,
	"search": types.ModeSearch, "s": types.ModeSearch,
	"goto": types.ModeGoto, "g": types.ModeGoto,
	"learn": types.ModeLearn, "l": types.ModeLearn,
	"chat": types.ModeChat, "c": types.ModeChat,
	"ask":  types.ModeAsk,
	"test": types.ModeTest,
	"auto": types.ModeAuto,
}

// Parse converts raw text into a Command. It never fails: unrecognized
// input becomes an auto-mode command so the router can still produce a
// terminal outcome for it.
func Parse(raw string) types.Command {
	cmd := types.Command{Mode: types.ModeAuto, Raw: raw}
	text := strings.TrimSpace(raw)

	if strings.HasPrefix(text, "@") {
		target := text
		if space := strings.IndexAny(text, " \t"); space != -1 {
			target = text[:space]
			text = strings.TrimSpace(text[space+1:])
		} else {
			text = ""
		}
		name := strings.TrimPrefix(target, "@")
		if colon := strings.Index(name, ":"); colon != -1 {
			cmd.TargetTab = name[colon+1:]
			name = name[:colon]
		}
		cmd.TargetInstance = name
	}

	if colon := strings.Index(text, ":"); colon > 0 {
		prefix := strings.ToLower(strings.TrimSpace(text[:colon]))
		if mode, ok := modePrefixes[prefix]; ok {
			cmd.Mode = mode
			text = strings.TrimSpace(text[colon+1:])
		}
	}

	cmd.Instruction = text
	return cmd
}
