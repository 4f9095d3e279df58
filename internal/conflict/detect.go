// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package conflict

import "github.com/MKhiriev/go-sync-keeper/models"

// DetectConflicts compares two copies field by field and returns one
// descriptor per differing sub-section, tagged with the resolver's default
// strategy. Entity-level differences (deletion, manual flag) are reported
// with an empty Section.
func (r *Resolver) DetectConflicts(local, remote models.SyncableEntity) []models.Conflict {
	return r.detect(local, remote, r.defaultStrategy)
}

// HasConflicts reports whether DetectConflicts would return anything.
func (r *Resolver) HasConflicts(local, remote models.SyncableEntity) bool {
	return len(r.DetectConflicts(local, remote)) > 0
}

func (r *Resolver) detect(local, remote models.SyncableEntity, strategy models.Strategy) []models.Conflict {
	var conflicts []models.Conflict

	if local.Deleted != remote.Deleted {
		conflicts = append(conflicts, models.Conflict{
			EntityID: local.ID,
			Kind:     models.ConflictDeletion,
			Strategy: strategy,
		})
	}
	if local.ManuallySet != remote.ManuallySet {
		conflicts = append(conflicts, models.Conflict{
			EntityID: local.ID,
			Kind:     models.ConflictManualFlag,
			Strategy: strategy,
		})
	}

	for _, name := range local.Payload.SectionNames(remote.Payload) {
		l, lok := local.Payload.Sections[name]
		r, rok := remote.Payload.Sections[name]

		c := models.Conflict{EntityID: local.ID, Section: name, Strategy: strategy}
		switch {
		case lok && !rok:
			c.Kind = models.ConflictLocalOnly
			c.Local = sectionPtr(l)
		case rok && !lok:
			c.Kind = models.ConflictRemoteOnly
			c.Remote = sectionPtr(r)
		case !l.Equal(r):
			c.Kind = models.ConflictSectionChanged
			c.Local = sectionPtr(l)
			c.Remote = sectionPtr(r)
		default:
			continue
		}
		conflicts = append(conflicts, c)
	}

	return conflicts
}

func sectionPtr(s models.Section) *models.Section {
	c := cloneSection(s)
	return &c
}
