// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"strings"
	"time"
)

// NewCurrentTimeTool creates the current_time tool. now may be nil.
func NewCurrentTimeTool(now func() time.Time) *Tool {
	if now == nil {
		now = time.Now
	}
	return &Tool{
		Name:        "current_time",
		Description: "Return the current date and time, optionally in an IANA timezone such as Europe/Oslo.",
		Schema: Schema{
			Parameters: []Parameter{
				{Name: "timezone", Type: "string", Description: "IANA timezone name (default: local time)"},
			},
		},
		Executor: ExecutorFunc(func(_ context.Context, params map[string]interface{}) (Result, error) {
			t := now()
			if tz := strings.TrimSpace(getStringParam(params, "timezone", "")); tz != "" {
				loc, err := time.LoadLocation(tz)
				if err != nil {
					return Result{Error: "unknown timezone " + tz}, nil
				}
				t = t.In(loc)
			}
			return Result{Success: true, Output: t.Format("Monday, 2 January 2006 15:04:05 MST (-07:00)")}, nil
		}),
	}
}
