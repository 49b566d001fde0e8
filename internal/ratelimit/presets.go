package ratelimit

import (
	"time"

	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/kv"
)

const (
	Login     = "login"
	LeadForm  = "lead"
	API       = "api"
	Analytics = "analytics"
	Setup     = "setup"
)

// Presets returns the named limiter configurations. Production limits are
// tighter than the ones used during development.
func Presets(production bool) map[string]Config {
	pick := func(prod, dev int) int {
		if production {
			return prod
		}
		return dev
	}

	return map[string]Config{
		Login: {
			Name:                   Login,
			Window:                 15 * time.Minute,
			Max:                    pick(10, 20),
			SkipSuccessfulRequests: true,
			Message:                "Too many login attempts, please try again later.",
		},
		LeadForm: {
			Name:    LeadForm,
			Window:  time.Hour,
			Max:     pick(5, 50),
			Message: "Too many form submissions, please try again later.",
		},
		API: {
			Name:    API,
			Window:  15 * time.Minute,
			Max:     pick(100, 1000),
			Message: "Too many requests, please try again later.",
		},
		Analytics: {
			Name:    Analytics,
			Window:  time.Minute,
			Max:     pick(60, 600),
			Message: "Too many analytics events, please slow down.",
		},
		Setup: {
			Name:    Setup,
			Window:  time.Hour,
			Max:     pick(3, 10),
			Message: "Too many setup attempts, please try again later.",
		},
	}
}

// NewPresetLimiters builds one Limiter per preset, all sharing store.
func NewPresetLimiters(store kv.Store, production bool, opts ...Option) map[string]*Limiter {
	presets := Presets(production)
	limiters := make(map[string]*Limiter, len(presets))
	for name, cfg := range presets {
		limiters[name] = New(cfg, store, opts...)
	}
	return limiters
}
