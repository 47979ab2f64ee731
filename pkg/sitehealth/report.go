package sitehealth

import (
	"context"
	"sort"
	"strings"

	"github.com/tendant/simple-secure/pkg/authz"
	apperrors "github.com/tendant/simple-secure/pkg/errors"
	"github.com/tendant/simple-secure/pkg/principal"
)

type Counts struct {
	Installed       int `json:"installed"`
	Active          int `json:"active"`
	Inactive        int `json:"inactive"`
	UpdateAvailable int `json:"update_available"`
}

type Section struct {
	Counts Counts      `json:"counts"`
	Rows   []Component `json:"rows"`
}

type Core struct {
	CurrentVersion     string   `json:"current_version"`
	AvailableUpdates   []string `json:"available_updates"`
	TranslationUpdates int      `json:"translation_updates"`
}

func (c Core) HasUpdate() bool {
	return len(c.AvailableUpdates) > 0
}

type Report struct {
	Plugins Section `json:"plugins"`
	Themes  Section `json:"themes"`
	Core    Core    `json:"core"`
}

// Build summarizes inv. Rows are sorted by display name and core update
// versions keep their first-seen order without duplicates.
func Build(inv Inventory) Report {
	return Report{
		Plugins: section(inv.Plugins),
		Themes:  section(inv.Themes),
		Core: Core{
			CurrentVersion:     inv.CoreVersion,
			AvailableUpdates:   unique(inv.CoreUpdates),
			TranslationUpdates: max(inv.TranslationUpdates, 0),
		},
	}
}

func section(components []Component) Section {
	rows := make([]Component, len(components))
	copy(rows, components)
	sort.SliceStable(rows, func(i, j int) bool {
		return strings.ToLower(rows[i].DisplayName()) < strings.ToLower(rows[j].DisplayName())
	})

	counts := Counts{Installed: len(rows)}
	for _, c := range rows {
		if c.Active {
			counts.Active++
		} else {
			counts.Inactive++
		}
		if c.UpdateAvailable {
			counts.UpdateAvailable++
		}
	}
	return Section{Counts: counts, Rows: rows}
}

func unique(versions []string) []string {
	out := []string{}
	seen := make(map[string]struct{}, len(versions))
	for _, v := range versions {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

type Service struct {
	provider Provider
	checker  authz.Checker
}

func NewService(provider Provider, checker authz.Checker) *Service {
	return &Service{provider: provider, checker: checker}
}

// Report builds the report for actor, who needs the manage capability.
func (s *Service) Report(ctx context.Context, actor principal.Principal) (Report, error) {
	if !s.checker.Can(actor, authz.Manage) {
		return Report{}, apperrors.Forbidden("not allowed to view site health")
	}
	inv, err := s.provider.Inventory(ctx)
	if err != nil {
		return Report{}, apperrors.InternalWrap(err, "failed to load site inventory")
	}
	return Build(inv), nil
}
