package provider

import (
	"sync/atomic"

	"devkit-go/errcode"
	"devkit-go/internal/core"
	"devkit-go/setups"
)

var taken atomic.Bool

// Take builds the resource registry for plan. Peripherals are handed out
// once per boot: every call after the first fails with errcode.Busy.
func Take(plan setups.ResourcePlan) (core.ResourceRegistry, error) {
	if !taken.CompareAndSwap(false, true) {
		return nil, errcode.Busy
	}
	return newRegistry(plan), nil
}
